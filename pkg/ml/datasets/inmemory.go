// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"encoding/gob"
	"io"
	"math/rand/v2"
	"sync"

	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// InMemoryDataset represents a Dataset that has been completely read into memory.
//
// It supports batching, shuffling (with and without replacement) and can be duplicated (only one copy
// of the underlying data is used).
//
// Finally, it supports serialization and deserialization, to accelerate loading of the data.
type InMemoryDataset struct {
	// name of the original dataset used to populate the InMemoryDataset.
	name      string
	shortName string

	// inputs and labels of each example. They are shared among copies of the dataset and never changed.
	inputs, labels [][]float64

	// muSampling serializes the sampling information, all the member variables below.
	muSampling sync.Mutex

	// batchSize to yield. If set to 0 yields only one example at a time.
	batchSize int

	// dropIncompleteBatch, when there are not enough remaining examples in the epoch.
	dropIncompleteBatch bool

	// next record to be sampled. If shuffle is given, this is an index in shuffle. If randomWithReplacement,
	// this is a count only.
	//
	// If it is set to -1, it means the dataset has been exhausted already.
	next int

	// randomWithReplacement indicates that one should simply take a random entry every time.
	randomWithReplacement bool

	// shuffle holds the current shuffle if Shuffle was selected.
	shuffle []int

	// infinite sets whether to loop indefinitely.
	infinite bool

	// randomNumberGenerator used when random sampling, allows for deterministic random datasets.
	randomNumberGenerator *rand.Rand

	// takeN is the maximum number of batches to take, before forcing an end of epoch.
	// If <= 0, take as many as available (or continuously if InMemoryDataset.infinite=true)
	takeN int
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// InMemory creates a dataset that reads the whole contents of `ds` into memory.
//
// `ds` is read until it returns io.EOF, and all the examples of all its batches are concatenated.
// It is reset at the end.
//
// Returns a `InMemoryDataset`, that is initially not shuffled and not batched. You can configure how you want to
// use it with the other configuration methods.
func InMemory(ds train.Dataset) (mds *InMemoryDataset, err error) {
	var inputs, labels [][]float64
	for {
		batchInputs, batchLabels, yieldErr := ds.Yield()
		if yieldErr == io.EOF {
			break
		}
		if yieldErr != nil {
			return nil, errors.WithMessagef(yieldErr, "failed reading dataset %q into memory", ds.Name())
		}
		inputs = append(inputs, batchInputs...)
		labels = append(labels, batchLabels...)
	}
	ds.Reset()
	mds, err = InMemoryFromData(ds.Name(), inputs, labels)
	if err != nil {
		return nil, err
	}
	mds.shortName = train.ShortName(ds)
	return mds, nil
}

// InMemoryFromData creates an InMemoryDataset from the static data given: inputs[i] and labels[i] are the values
// of the i-th example.
//
// All examples must have the same number of inputs and labels, and the data is not copied, so it shouldn't be
// changed afterward.
//
// This is useful to writing unit tests, with small datasets provided inline.
//
// Example: A dataset with two inputs and one label. Each with two examples.
//
//	mds, err := InMemoryFromData("test",
//		[][]float64{{1, 2}, {3, 4}},
//		[][]float64{{3}, {7}})
func InMemoryFromData(name string, inputs, labels [][]float64) (mds *InMemoryDataset, err error) {
	if len(inputs) == 0 {
		return nil, errors.Errorf("dataset %q has no examples", name)
	}
	if len(inputs) != len(labels) {
		return nil, errors.Errorf("dataset %q has %d examples of inputs, but %d examples of labels -- they must match",
			name, len(inputs), len(labels))
	}
	numInputs, numLabels := len(inputs[0]), len(labels[0])
	for ii := range inputs {
		if len(inputs[ii]) != numInputs || len(labels[ii]) != numLabels {
			return nil, errors.Errorf("dataset %q example #%d has %d inputs and %d labels, but example #0 has %d and %d",
				name, ii, len(inputs[ii]), len(labels[ii]), numInputs, numLabels)
		}
	}
	mds = &InMemoryDataset{
		inputs:                inputs,
		labels:                labels,
		randomNumberGenerator: newRand(),
	}
	mds.SetName(name)
	return mds, nil
}

// NumExamples held by the dataset.
func (mds *InMemoryDataset) NumExamples() int {
	return len(mds.inputs)
}

// Example returns the inputs and labels of the i-th example. They must not be modified.
func (mds *InMemoryDataset) Example(i int) (inputs, labels []float64) {
	return mds.inputs[i], mds.labels[i]
}

// Copy returns a copy of the dataset. It uses the same underlying data -- so very little memory is used.
//
// The copy comes configured by default with sequential reading (not random sampling), non-looping, and reset.
func (mds *InMemoryDataset) Copy() *InMemoryDataset {
	return &InMemoryDataset{
		name:                  mds.name,
		shortName:             mds.shortName,
		inputs:                mds.inputs,
		labels:                mds.labels,
		takeN:                 mds.takeN,
		randomNumberGenerator: newRand(),
	}
}

// Name implements `train.Dataset`
func (mds *InMemoryDataset) Name() string {
	return mds.name
}

// ShortName implements `train.HasShortName`
func (mds *InMemoryDataset) ShortName() string {
	return mds.shortName
}

// SetName sets the name of the dataset and optionally its ShortName, and returns the updated dataset.
func (mds *InMemoryDataset) SetName(name string, shortName ...string) *InMemoryDataset {
	mds.name = name
	if len(shortName) > 0 {
		mds.shortName = shortName[0]
	} else {
		mds.shortName = name
		if len(name) > 3 {
			mds.shortName = name[:3]
		}
	}
	return mds
}

// Reset implements `train.Dataset`
func (mds *InMemoryDataset) Reset() {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()

	mds.next = 0
	if mds.shuffle != nil {
		mds.shuffleLocked()
	}
}

// indicesNextYield retrieve the indices for the next Yield call.
func (mds *InMemoryDataset) indicesNextYield() (indices []int) {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	if mds.next == -1 {
		return // dataset already exhausted.
	}
	numExamples := len(mds.inputs)
	n := mds.batchSize
	if n <= 0 {
		n = 1
	}
	indices = make([]int, 0, n)
	for mds.next < numExamples && len(indices) < n {
		if len(mds.shuffle) > 0 {
			indices = append(indices, mds.shuffle[mds.next])
		} else if mds.randomWithReplacement {
			indices = append(indices, mds.randomNumberGenerator.IntN(numExamples))
		} else {
			indices = append(indices, mds.next)
		}
		mds.next++
	}
	if len(indices) < n && mds.dropIncompleteBatch {
		// Drop the incomplete batch.
		indices = nil
	}
	if mds.next >= numExamples {
		mds.next = -1
	}
	if mds.takeN > 0 && mds.next >= mds.takeN*n {
		mds.next = -1
	}
	return
}

// Yield implements `train.Dataset`.
//
// Returns next batch's inputs and labels, or a single example if BatchSize is set to 0.
// The values returned are shared with the dataset and must not be modified.
func (mds *InMemoryDataset) Yield() (inputs, labels [][]float64, err error) {
	indices := mds.indicesNextYield()
	if len(indices) == 0 {
		if !mds.infinite {
			// Dataset is already exhausted.
			err = io.EOF
			return
		}

		// If looping infinitely, automatically Reset and pull new indices.
		mds.Reset()
		indices = mds.indicesNextYield()
		if len(indices) == 0 {
			klog.Errorf("InMemoryDataset %q configured for infinite loop, but Reset failed to generate new examples!?", mds.name)
			err = io.EOF
			return
		}
	}

	inputs = make([][]float64, len(indices))
	labels = make([][]float64, len(indices))
	for ii, idx := range indices {
		inputs[ii] = mds.inputs[idx]
		labels[ii] = mds.labels[idx]
	}
	return
}

// RandomWithReplacement configures the InMemoryDataset to return random elements with replacement.
// If this is configured, Shuffle is canceled.
//
// It returns the modified InMemoryDataset, so calls can be cascaded if one wants.
func (mds *InMemoryDataset) RandomWithReplacement() *InMemoryDataset {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.randomWithReplacement = true
	mds.shuffle = nil
	return mds
}

// Shuffle configures the InMemoryDataset to shuffle the order of the data. It returns random elements
// without replacement. If this is configured, RandomWithReplacement is canceled.
//
// At each call to Reset() it is reshuffled. It happens automatically if dataset is configured to Loop.
//
// It returns the modified InMemoryDataset, so calls can be cascaded if one wants.
func (mds *InMemoryDataset) Shuffle() *InMemoryDataset {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.randomWithReplacement = false
	mds.shuffleLocked()
	return mds
}

// shuffleLocked shuffles dataset yield order. It assumed muSampling is locked.
func (mds *InMemoryDataset) shuffleLocked() {
	numExamples := len(mds.inputs)
	if mds.shuffle == nil {
		mds.shuffle = make([]int, numExamples)
	}
	for ii := range numExamples {
		mds.shuffle[ii] = ii
	}
	mds.randomNumberGenerator.Shuffle(numExamples, func(i, j int) {
		mds.shuffle[i], mds.shuffle[j] = mds.shuffle[j], mds.shuffle[i]
	})
}

// BatchSize configures the InMemoryDataset to return batches of the given size. dropIncompleteBatch is set to true,
// it will simply drop examples if there are not enough to fill a batch -- this can only happen on the last
// batch of an epoch. Otherwise, it will return a partially filled batch.
//
// If `n` is set to 0, it reverts back to yielding one example at a time.
//
// It returns the modified InMemoryDataset, so calls can be cascaded if one wants.
func (mds *InMemoryDataset) BatchSize(n int, dropIncompleteBatch bool) *InMemoryDataset {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.batchSize = n
	mds.dropIncompleteBatch = dropIncompleteBatch
	return mds
}

// WithRand sets the random number generator (RNG) for shuffling or random sampling. This allows for repeatable
// deterministic random sampling, if one wants. The default is to use a randomly seeded RNG.
//
// If dataset is configured with Shuffle, this re-shuffles the dataset immediately.
//
// It returns the modified InMemoryDataset, so calls can be cascaded if one wants.
func (mds *InMemoryDataset) WithRand(rng *rand.Rand) *InMemoryDataset {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.randomNumberGenerator = rng
	if mds.shuffle != nil {
		mds.shuffleLocked()
	}
	return mds
}

// Infinite sets whether the dataset should loop indefinitely. The default is `infinite = false`, which
// causes the dataset to going through the data only once before returning io.EOF.
//
// It returns the modified InMemoryDataset, so calls can be cascaded if one wants.
func (mds *InMemoryDataset) Infinite(infinite bool) *InMemoryDataset {
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.infinite = infinite
	return mds
}

// TakeN configures dataset to only take N batches before returning io.EOF.
// If set to 0 or -1, it takes as many as there is data.
// If configured, it automatically disables InMemoryDataset.Infinite
func (mds *InMemoryDataset) TakeN(n int) *InMemoryDataset {
	if n > 0 {
		mds.Infinite(false)
	}
	mds.muSampling.Lock()
	defer mds.muSampling.Unlock()
	mds.takeN = n
	return mds
}

// GobSerialize in-memory content to the encoder.
//
// Only the name and the underlying data are serialized, not the sampling configuration.
func (mds *InMemoryDataset) GobSerialize(encoder *gob.Encoder) (err error) {
	enc := func(data any) {
		if err != nil {
			return
		}
		err = encoder.Encode(data)
		if err != nil {
			err = errors.Wrapf(err, "failed to Serialize InMemoryDataset")
		}
	}
	enc(mds.name)
	enc(mds.shortName)
	enc(mds.inputs)
	enc(mds.labels)
	return
}

// GobDeserializeInMemory dataset from the decoder.
//
// No sampling configuration is recovered, and the InMemoryDataset created is sequential (no random sampling)
// that reads through only one epoch. The random number generator is also newly initialized (see
// InMemoryDataset.WithRand).
func GobDeserializeInMemory(decoder *gob.Decoder) (mds *InMemoryDataset, err error) {
	dec := func(data any) {
		if err != nil {
			return
		}
		err = decoder.Decode(data)
		if err != nil {
			err = errors.Wrapf(err, "failed to DeserializeInMemory")
		}
	}
	var name, shortName string
	var inputs, labels [][]float64
	dec(&name)
	dec(&shortName)
	dec(&inputs)
	dec(&labels)
	if err != nil {
		return
	}
	mds, err = InMemoryFromData(name, inputs, labels)
	if err != nil {
		return nil, err
	}
	mds.shortName = shortName
	return
}
