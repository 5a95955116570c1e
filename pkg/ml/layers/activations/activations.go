// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package activations implements the activations available to neurons, and includes a generic Apply method
// to apply an activation by its type.
//
// There is also FromName to convert an activation name (string) to its type, and ApplyFromContext that applies
// an activation based on the hyperparameter ParamActivation defined in a context.
package activations

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
)

const (
	// ParamActivation context hyperparameter defines the activation to use, for models using ApplyFromContext.
	// Available values are: `none` or `relu`.
	// The default is `relu`.
	ParamActivation = "activation"
)

// Type is an enum for the supported activation functions.
//
// It is converted to snake-format strings (e.g.: TypeRelu -> "relu"), and can be converted
// from string by using TypeString or FromName.
type Type int

const (
	// TypeNone is the identity: used by linear neurons.
	TypeNone Type = iota
	TypeRelu
)

//go:generate go tool enumer -type Type -trimprefix=Type -transform=snake -values -text -output=gen_type_enumer.go activations.go

// ApplyFromContext picks an activation function from the context using [ParamActivation] parameter,
// and applies it to x.
//
// It defaults to "relu".
func ApplyFromContext(ctx *context.Context, x *Node) *Node {
	activationName := context.GetParamOr(ctx, ParamActivation, "relu")
	return Apply(FromName(activationName), x)
}

// Apply the given activation type.
// The TypeNone activation is a no-op.
func Apply(activation Type, x *Node) *Node {
	switch activation {
	case TypeNone:
		return x
	case TypeRelu:
		return Relu(x)
	default:
		exceptions.Panicf("Apply got invalid activation value %d: options are %v", int(activation), TypeValues())
	}
	return nil
}

// ApplyValue applies the activation to a plain value, without building any graph node.
// Used to evaluate trained models outside of a graph.
func ApplyValue(activation Type, x float64) float64 {
	switch activation {
	case TypeNone:
		return x
	case TypeRelu:
		return max(x, 0)
	default:
		exceptions.Panicf("ApplyValue got invalid activation value %d: options are %v", int(activation), TypeValues())
	}
	return 0
}

// FromName converts the name of an activation to its type.
// It panics with a helpful message if name is invalid.
//
// And empty string is converted to TypeNone.
func FromName(activationName string) Type {
	if activationName == "" {
		return TypeNone
	}
	activation, err := TypeString(activationName)
	if err != nil {
		exceptions.Panicf("invalid activation name %q: options are %v", activationName, TypeValues())
	}
	return activation
}

// NeuronPrefix returns the prefix used when printing a neuron with this activation: "ReLU" or "Linear".
func (i Type) NeuronPrefix() string {
	if i == TypeRelu {
		return "ReLU"
	}
	return "Linear"
}
