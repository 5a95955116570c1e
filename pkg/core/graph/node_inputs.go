// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strconv"
)

// NodeInputs represents the inputs to node: its operands and static parameters. The common interface is to
// return the type of the node. For the input parameters themselves, the pointer needs to be cast to the
// corresponding type, named nodeInputs<NodeType>.
type NodeInputs interface {
	Type() NodeType

	// Label is the short form of the operation used for pretty-printing, e.g.: "+", "*", "**2".
	Label() string

	// String prints a descriptive representation of the node, using its parameters.
	String() string
}

// nodeInputsLeaf holds the inputs used for a leaf node: there are none.
type nodeInputsLeaf struct{}

func (ni *nodeInputsLeaf) Type() NodeType { return NodeTypeLeaf }
func (ni *nodeInputsLeaf) Label() string  { return "" }
func (ni *nodeInputsLeaf) String() string { return "Leaf()" }

// nodeInputsAdd holds the inputs used for the call to Add.
type nodeInputsAdd struct {
	x, y NodeId
}

func (ni *nodeInputsAdd) Type() NodeType { return NodeTypeAdd }
func (ni *nodeInputsAdd) Label() string  { return "+" }
func (ni *nodeInputsAdd) String() string {
	return fmt.Sprintf("%s(x=#%d, y=#%d)", ni.Type(), ni.x, ni.y)
}

// nodeInputsMul holds the inputs used for the call to Mul.
type nodeInputsMul struct {
	x, y NodeId
}

func (ni *nodeInputsMul) Type() NodeType { return NodeTypeMul }
func (ni *nodeInputsMul) Label() string  { return "*" }
func (ni *nodeInputsMul) String() string {
	return fmt.Sprintf("%s(x=#%d, y=#%d)", ni.Type(), ni.x, ni.y)
}

// nodeInputsPow holds the inputs used for the call to Pow. The exponent is static, not a node.
type nodeInputsPow struct {
	x        NodeId
	exponent float64
}

func (ni *nodeInputsPow) Type() NodeType { return NodeTypePow }
func (ni *nodeInputsPow) Label() string {
	return "**" + strconv.FormatFloat(ni.exponent, 'g', -1, 64)
}
func (ni *nodeInputsPow) String() string {
	return fmt.Sprintf("%s(x=#%d, exponent=%g)", ni.Type(), ni.x, ni.exponent)
}

// nodeInputsRelu holds the inputs used for the call to Relu.
type nodeInputsRelu struct {
	x NodeId
}

func (ni *nodeInputsRelu) Type() NodeType { return NodeTypeRelu }
func (ni *nodeInputsRelu) Label() string  { return "ReLU" }
func (ni *nodeInputsRelu) String() string {
	return fmt.Sprintf("%s(x=#%d)", ni.Type(), ni.x)
}
