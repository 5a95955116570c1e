package graph_test

import (
	"math"
	"testing"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/core/graph/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackwardChain(t *testing.T) {
	g := NewGraph("chain")
	a, b, c := Scalar(g, 2), Scalar(g, -3), Scalar(g, 10)
	y := Relu(Add(Mul(a, b), c))
	require.Equal(t, 4.0, y.Value())
	y.Backward()
	assert.Equal(t, 1.0, y.Grad())
	assert.Equal(t, -3.0, a.Grad())
	assert.Equal(t, 2.0, b.Grad())
	assert.Equal(t, 1.0, c.Grad())
}

func TestBackwardInactiveRelu(t *testing.T) {
	g := NewGraph("inactive_relu")
	a, b, c := Scalar(g, 2), Scalar(g, -3), Scalar(g, 1)
	y := Relu(Add(Mul(a, b), c))
	require.Equal(t, 0.0, y.Value())
	y.Backward()
	assert.Zero(t, a.Grad())
	assert.Zero(t, b.Grad())
	assert.Zero(t, c.Grad())
}

func TestBackwardAccumulatesAcrossCalls(t *testing.T) {
	g := NewGraph("twice")
	a, b, c := Scalar(g, 2), Scalar(g, -3), Scalar(g, 10)
	y := Relu(Add(Mul(a, b), c))
	y.Backward()
	first := []float64{a.Grad(), b.Grad(), c.Grad()}

	// Without resetting the gradients, a second call doubles them: this is the expected behavior.
	y.Backward()
	assert.Equal(t, []float64{2 * first[0], 2 * first[1], 2 * first[2]}, []float64{a.Grad(), b.Grad(), c.Grad()})
	// The root is re-seeded to 1, not accumulated.
	assert.Equal(t, 1.0, y.Grad())

	g.ZeroGrad()
	y.Backward()
	assert.Equal(t, first, []float64{a.Grad(), b.Grad(), c.Grad()})
}

func TestBackwardTwiceDoublesExactly(t *testing.T) {
	g := NewGraph("twice_exact")
	a, b, c := Scalar(g, 2), Scalar(g, -3), Scalar(g, 10)
	y := Relu(Add(Mul(a, b), c))
	y.Backward()
	y.Backward()
	// Gradients left in the intermediate nodes by the first call are not propagated again.
	assert.Equal(t, []float64{-6, 4, 2}, []float64{a.Grad(), b.Grad(), c.Grad()})
	assert.Equal(t, 1.0, y.Grad())

	// A leaf as the root: its gradient is always re-seeded to 1.
	x := Scalar(g, 7)
	x.Backward()
	x.Backward()
	assert.Equal(t, 1.0, x.Grad())

	// Fan-out: x contributes through 2 branches, and each call adds 2+2*x once.
	g = NewGraph("twice_fan_out")
	x = Scalar(g, 3)
	out := Add(MulScalar(x, 2), Square(x))
	out.Backward()
	assert.Equal(t, 8.0, x.Grad())
	out.Backward()
	assert.Equal(t, 16.0, x.Grad())
	out.Backward()
	assert.Equal(t, 24.0, x.Grad())
}

func TestBackwardFanOut(t *testing.T) {
	// x feeds two different branches: its gradient is the sum of both contributions.
	g := NewGraph("fan_out")
	x := Scalar(g, 3)
	left := MulScalar(x, 2)
	right := Square(x)
	out := Add(left, right)
	assert.Equal(t, 15.0, out.Value())
	out.Backward()
	assert.Equal(t, 2.0+2*3.0, x.Grad())
}

func TestBackwardOnlyAffectsDependencies(t *testing.T) {
	g := NewGraph("partial")
	a, b := Scalar(g, 2), Scalar(g, 3)
	unrelated := Mul(b, b)
	out := MulScalar(a, 5)
	out.Backward()
	assert.Equal(t, 5.0, a.Grad())
	assert.Zero(t, b.Grad())
	assert.Zero(t, unrelated.Grad())

	// Backward from an intermediate node.
	unrelated.Backward()
	assert.Equal(t, 6.0, b.Grad())
	assert.Equal(t, 5.0, a.Grad())
}

func TestTopologicalOrder(t *testing.T) {
	g := NewGraph("topological")
	a, b := Scalar(g, 1), Scalar(g, 2)
	c := Mul(a, b)
	d := Add(c, a)
	e := Mul(d, c)
	order := TopologicalOrder(e)
	require.Len(t, order, 5)
	assert.Same(t, e, order[len(order)-1])

	position := make(map[*Node]int, len(order))
	for ii, node := range order {
		_, duplicate := position[node]
		require.Falsef(t, duplicate, "node %s visited twice", node)
		position[node] = ii
	}
	for _, node := range order {
		for _, input := range node.Inputs() {
			assert.Lessf(t, position[input], position[node], "operand %s must come before %s", input, node)
		}
	}

	// Leaves have a trivial order.
	assert.Equal(t, []*Node{a}, TopologicalOrder(a))
}

func TestDeepChain(t *testing.T) {
	// A recursive traversal would be very deep here.
	const depth = 200_000
	g := NewGraph("deep")
	x := Scalar(g, 1)
	y := x
	for range depth {
		y = AddScalar(y, 1)
	}
	require.Equal(t, float64(depth+1), y.Value())
	y.Backward()
	assert.Equal(t, 1.0, x.Grad())
}

func TestGradient(t *testing.T) {
	g := NewGraph("gradient")
	a, b := Scalar(g, 3), Scalar(g, 4)
	norm := Pow(Add(Square(a), Square(b)), 0.5)
	assert.Equal(t, 5.0, norm.Value())
	gradients := Gradient(norm, a, b)
	assert.InDeltaSlice(t, []float64{3.0 / 5, 4.0 / 5}, gradients, Epsilon)
}

func TestNumericalGradients(t *testing.T) {
	graphtest.RunGradientCheck(t, "polynomial", func(g *Graph, inputs []*Node) *Node {
		x, y := inputs[0], inputs[1]
		// 3x²y - y³ + 2/x
		return Add(Sub(MulScalar(Mul(Square(x), y), 3), Pow(y, 3)), ScalarDiv(2, x))
	}, []float64{1.5, -0.7}, 1e-5)

	graphtest.RunGradientCheck(t, "micrograd-like", func(g *Graph, inputs []*Node) *Node {
		a, b := inputs[0], inputs[1]
		c := Add(a, b)
		d := Add(Mul(a, b), Pow(b, 3))
		c = Add(c, AddScalar(c, 1))
		c = Add(c, Add(AddScalar(c, 1), Neg(a)))
		d = Add(d, Add(MulScalar(d, 2), Relu(Add(b, a))))
		d = Add(d, Add(MulScalar(d, 3), Relu(Sub(b, a))))
		e := Sub(c, d)
		f := Square(e)
		h := DivScalar(f, 2)
		return Add(h, ScalarDiv(10, f))
	}, []float64{-4, 2}, 1e-4)

	graphtest.RunGradientCheck(t, "relu network", func(g *Graph, inputs []*Node) *Node {
		h1 := Relu(Add(Mul(inputs[0], inputs[1]), inputs[2]))
		h2 := Relu(Sub(Mul(inputs[0], inputs[2]), inputs[1]))
		return Mean(Square(SubScalar(Add(h1, h2), 1)), Square(h1))
	}, []float64{0.8, 1.3, -0.4}, 1e-5)
}

func TestMicrogradReference(t *testing.T) {
	// Same expression as the "micrograd-like" check, with well known values.
	g := NewGraph("reference")
	a, b := Scalar(g, -4), Scalar(g, 2)
	c := Add(a, b)
	d := Add(Mul(a, b), Pow(b, 3))
	c = Add(c, AddScalar(c, 1))
	c = Add(c, Add(AddScalar(c, 1), Neg(a)))
	d = Add(d, Add(MulScalar(d, 2), Relu(Add(b, a))))
	d = Add(d, Add(MulScalar(d, 3), Relu(Sub(b, a))))
	e := Sub(c, d)
	f := Square(e)
	h := DivScalar(f, 2)
	out := Add(h, ScalarDiv(10, f))
	assert.InDelta(t, 24.70408163265306, out.Value(), 1e-9)
	out.Backward()
	assert.InDelta(t, 138.83381924198252, a.Grad(), 1e-9)
	assert.InDelta(t, 645.5772594752186, b.Grad(), 1e-9)
	assert.False(t, math.IsNaN(out.Grad()))
}
