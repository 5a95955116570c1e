// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// NodeType identifies the operation that created a Node.
//
// It is used to select the back-propagation rule (see VJPRegistration) and for pretty-printing.
type NodeType int

const (
	NodeTypeInvalid NodeType = iota
	NodeTypeLeaf
	NodeTypeAdd
	NodeTypeMul
	NodeTypePow
	NodeTypeRelu
)

//go:generate go tool enumer -type=NodeType -trimprefix=NodeType nodetype.go
