// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"math"
	"math/rand/v2"

	"github.com/gomlx/exceptions"
)

// Labels used by the synthetic datasets.
const (
	NegativeLabel = -1.0
	PositiveLabel = 1.0
)

// SyntheticGenerator generates a synthetic dataset with numExamples examples, with the given amount of noise.
type SyntheticGenerator func(numExamples int, noise float64, rng *rand.Rand) *InMemoryDataset

// Moons generates the "two interleaving half circles" dataset: the upper moon is centered in (0, 0) and
// labeled NegativeLabel, the lower moon is centered in (1, 0.5) and labeled PositiveLabel.
//
// Gaussian noise with standard deviation `noise` is added to each coordinate. The examples are shuffled
// with rng, so the dataset can be used directly for training.
func Moons(numExamples int, noise float64, rng *rand.Rand) *InMemoryDataset {
	checkNumExamples("Moons", numExamples)
	numOuter := numExamples / 2
	numInner := numExamples - numOuter
	inputs := make([][]float64, 0, numExamples)
	labels := make([][]float64, 0, numExamples)
	for ii := range numOuter {
		angle := math.Pi * float64(ii) / float64(max(numOuter-1, 1))
		inputs = append(inputs, []float64{math.Cos(angle), math.Sin(angle)})
		labels = append(labels, []float64{NegativeLabel})
	}
	for ii := range numInner {
		angle := math.Pi * float64(ii) / float64(max(numInner-1, 1))
		inputs = append(inputs, []float64{1 - math.Cos(angle), 0.5 - math.Sin(angle)})
		labels = append(labels, []float64{PositiveLabel})
	}
	return newSynthetic("moons", inputs, labels, noise, rng)
}

// XOR generates points uniformly distributed in the square [-1, 1]x[-1, 1], labeled PositiveLabel in
// the 1st and 3rd quadrants (x*y > 0) and NegativeLabel otherwise.
//
// Gaussian noise with standard deviation `noise` is added to the inputs after labeling, so large noise values
// will make some of the examples land in the wrong quadrant.
func XOR(numExamples int, noise float64, rng *rand.Rand) *InMemoryDataset {
	checkNumExamples("XOR", numExamples)
	inputs := make([][]float64, numExamples)
	labels := make([][]float64, numExamples)
	for ii := range numExamples {
		x, y := 2*rng.Float64()-1, 2*rng.Float64()-1
		inputs[ii] = []float64{x, y}
		labels[ii] = []float64{NegativeLabel}
		if x*y > 0 {
			labels[ii][0] = PositiveLabel
		}
	}
	return newSynthetic("xor", inputs, labels, noise, rng)
}

// Blobs generates two linearly separable clusters of points, with standard deviation 0.5 around
// (-1, -1), labeled NegativeLabel, and (1, 1), labeled PositiveLabel.
//
// Extra gaussian noise with standard deviation `noise` is added to each coordinate.
func Blobs(numExamples int, noise float64, rng *rand.Rand) *InMemoryDataset {
	checkNumExamples("Blobs", numExamples)
	inputs := make([][]float64, numExamples)
	labels := make([][]float64, numExamples)
	for ii := range numExamples {
		center, label := -1.0, NegativeLabel
		if ii%2 == 1 {
			center, label = 1.0, PositiveLabel
		}
		inputs[ii] = []float64{center + 0.5*rng.NormFloat64(), center + 0.5*rng.NormFloat64()}
		labels[ii] = []float64{label}
	}
	return newSynthetic("blobs", inputs, labels, noise, rng)
}

// SyntheticByName returns the generator for the given name: "moons", "xor" or "blobs".
// It returns nil if name is unknown.
func SyntheticByName(name string) SyntheticGenerator {
	switch name {
	case "moons":
		return Moons
	case "xor":
		return XOR
	case "blobs":
		return Blobs
	}
	return nil
}

func checkNumExamples(name string, numExamples int) {
	if numExamples < 2 {
		exceptions.Panicf("datasets.%s requires at least 2 examples, got numExamples=%d", name, numExamples)
	}
}

// newSynthetic adds noise to the inputs, shuffles the examples and builds the InMemoryDataset.
func newSynthetic(name string, inputs, labels [][]float64, noise float64, rng *rand.Rand) *InMemoryDataset {
	if noise > 0 {
		for _, example := range inputs {
			for ii := range example {
				example[ii] += noise * rng.NormFloat64()
			}
		}
	}
	rng.Shuffle(len(inputs), func(i, j int) {
		inputs[i], inputs[j] = inputs[j], inputs[i]
		labels[i], labels[j] = labels[j], labels[i]
	})
	mds, err := InMemoryFromData(name, inputs, labels)
	if err != nil {
		panic(err)
	}
	return mds.WithRand(rng)
}
