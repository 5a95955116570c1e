// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package datasets is a collection of utility datasets (train.Dataset): `InMemory` and `InMemoryFromData`,
// that hold the examples in Go slices and support batching and shuffling, and `Take`.
//
// It also includes generators of small synthetic classification problems: `Moons`, `XOR` and `Blobs`.
// All of them generate 2 inputs per example and one label set to -1 or +1, ready to use with losses.Hinge
// or losses.MeanSquaredError.
package datasets

import (
	"fmt"
	"io"

	"github.com/gomlx/scalargrad/pkg/ml/train"
)

// takeDataset implements a `train.Dataset` that only yields `take` batches.
type takeDataset struct {
	ds          train.Dataset
	count, take int
}

// Take returns a wrapper to `ds`, a `train.Dataset` that only yields `n` batches.
func Take(ds train.Dataset, n int) train.Dataset {
	return &takeDataset{
		ds:   ds,
		take: n,
	}
}

// Name implements train.Dataset. It returns the dataset name.
func (ds *takeDataset) Name() string {
	return fmt.Sprintf("%s [Take %d]", ds.ds.Name(), ds.take)
}

// Reset implements train.Dataset.
func (ds *takeDataset) Reset() {
	ds.ds.Reset()
	ds.count = 0
}

// Yield implements train.Dataset.
func (ds *takeDataset) Yield() (inputs, labels [][]float64, err error) {
	if ds.count >= ds.take {
		err = io.EOF
		return
	}
	ds.count++
	inputs, labels, err = ds.ds.Yield()
	return
}
