// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import "github.com/gomlx/exceptions"

// This file holds ops derived from the basic ones: they don't need back-propagation rules of their own.

// Neg returns -x, implemented as x * -1.
func Neg(x *Node) *Node {
	return MulScalar(x, -1)
}

// Sub returns x - y, implemented as x + (-y).
func Sub(x, y *Node) *Node {
	return Add(x, Neg(y))
}

// Div returns x / y, implemented as x * y**-1.
//
// Dividing by a node whose value is 0 is not an error: it yields an infinite or NaN value.
func Div(x, y *Node) *Node {
	return Mul(x, Reciprocal(y))
}

// Reciprocal returns 1/x, implemented as x**-1.
func Reciprocal(x *Node) *Node {
	return Pow(x, -1)
}

// Square returns x**2.
func Square(x *Node) *Node {
	return Pow(x, 2)
}

// AddScalar returns x + value. Since addition is commutative, it also serves for value + x.
func AddScalar(x *Node, value float64) *Node {
	return Add(x, Scalar(x.Graph(), value))
}

// SubScalar returns x - value.
func SubScalar(x *Node, value float64) *Node {
	return Sub(x, Scalar(x.Graph(), value))
}

// ScalarSub returns value - x.
func ScalarSub(value float64, x *Node) *Node {
	return Add(Scalar(x.Graph(), value), Neg(x))
}

// MulScalar returns x * value. Since multiplication is commutative, it also serves for value * x.
func MulScalar(x *Node, value float64) *Node {
	return Mul(x, Scalar(x.Graph(), value))
}

// DivScalar returns x / value.
func DivScalar(x *Node, value float64) *Node {
	return Div(x, Scalar(x.Graph(), value))
}

// ScalarDiv returns value / x.
func ScalarDiv(value float64, x *Node) *Node {
	return Mul(Scalar(x.Graph(), value), Reciprocal(x))
}

// Sum returns the sum of all the given nodes, accumulated from left to right.
// At least one node must be given.
func Sum(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		exceptions.Panicf("Sum requires at least one node")
	}
	sum := nodes[0]
	for _, node := range nodes[1:] {
		sum = Add(sum, node)
	}
	return sum
}

// Mean returns the mean of the given nodes. At least one node must be given.
func Mean(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		exceptions.Panicf("Mean requires at least one node")
	}
	return MulScalar(Sum(nodes...), 1.0/float64(len(nodes)))
}
