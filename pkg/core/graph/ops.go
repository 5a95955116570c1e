// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// ErrInvalidOperation is the error (wrapped) with which operations panic when they are given arguments outside
// what is supported by design, for instance a Node as exponent of Pow.
//
// Use errors.Is to test for it, after recovering the panic with exceptions.TryCatch[error].
var ErrInvalidOperation = errors.New("invalid operation")

// validateBuildingGraphFromInputs checks that all inputs are valid and belong to the same graph, and returns
// that graph.
func validateBuildingGraphFromInputs(inputs ...*Node) (g *Graph) {
	for ii, input := range inputs {
		if input == nil {
			exceptions.Panicf("operand #%d is nil", ii)
		}
		input.AssertValid()
		if g == nil {
			g = input.graph
		} else if input.graph != g {
			exceptions.Panicf("operands from different graphs: graph %q and graph %q", g.name, input.graph.name)
		}
	}
	return g
}

// newNode creates the node with the given value and inputs, registers it in the graph and sets its
// de-duplicated operand ids.
func newNode(g *Graph, value float64, inputs NodeInputs, operands ...*Node) *Node {
	node := &Node{
		value:  value,
		inputs: inputs,
	}
	if len(operands) > 0 {
		node.inputIds = make([]NodeId, 0, len(operands))
	}
	for _, operand := range operands {
		duplicate := false
		for _, id := range node.inputIds {
			if id == operand.id {
				duplicate = true
				break
			}
		}
		if !duplicate {
			node.inputIds = append(node.inputIds, operand.id)
		}
	}
	g.registerNode(node)
	return node
}

// Scalar creates a leaf node with the given value.
func Scalar(g *Graph, value float64) *Node {
	g.AssertValid()
	return newNode(g, value, &nodeInputsLeaf{})
}

// Const creates a leaf node from any Go integer or float value, converted to float64.
func Const[T constraints.Integer | constraints.Float](g *Graph, value T) *Node {
	return Scalar(g, float64(value))
}

// Add returns a node with the sum x + y.
func Add(x, y *Node) *Node {
	g := validateBuildingGraphFromInputs(x, y)
	return newNode(g, x.value+y.value, &nodeInputsAdd{x: x.id, y: y.id}, x, y)
}

// Mul returns a node with the product x * y.
func Mul(x, y *Node) *Node {
	g := validateBuildingGraphFromInputs(x, y)
	return newNode(g, x.value*y.value, &nodeInputsMul{x: x.id, y: y.id}, x, y)
}

// Pow returns a node with x raised to the static exponent, x**exponent.
//
// The exponent is not a node: differentiating through a variable exponent is not supported.
func Pow(x *Node, exponent float64) *Node {
	g := validateBuildingGraphFromInputs(x)
	return newNode(g, math.Pow(x.value, exponent), &nodeInputsPow{x: x.id, exponent: exponent}, x)
}

// PowAny is like Pow, but accepts any Go integer or float type as exponent.
//
// Any other exponent type, in particular a *Node, panics with an error wrapping ErrInvalidOperation.
func PowAny(x *Node, exponent any) *Node {
	p, ok := toFloat64(exponent)
	if !ok {
		if _, isNode := exponent.(*Node); isNode {
			panic(errors.Wrapf(ErrInvalidOperation,
				"Pow only supports real number exponents, got a graph node: use Pow(x, float64) instead"))
		}
		panic(errors.Wrapf(ErrInvalidOperation,
			"Pow only supports real number exponents, got exponent of type %T", exponent))
	}
	return Pow(x, p)
}

// toFloat64 converts any Go integer or float value to float64.
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// Relu returns a node with the rectified linear unit max(0, x).
//
// Its gradient is 1 when the output is > 0 and 0 otherwise (including at x == 0).
func Relu(x *Node) *Node {
	g := validateBuildingGraphFromInputs(x)
	value := x.value
	if value < 0 {
		value = 0
	}
	return newNode(g, value, &nodeInputsRelu{x: x.id}, x)
}
