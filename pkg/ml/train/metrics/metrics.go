// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package metrics holds a library of metrics and defines the metrics Interface used by train.Trainer and
// train.Loop.
//
// Metrics are computed from the values of the labels and predictions of a batch, after the forward pass,
// so they don't add nodes to the graph.
package metrics

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Batch holds the values of one batch, after the forward pass, used to update the metrics.
type Batch struct {
	// Labels and Predictions have one entry per example, each with one value per model output.
	Labels, Predictions [][]float64

	// Loss is the mean loss of the batch, including regularization terms.
	Loss float64
}

// Size of the batch.
func (b *Batch) Size() int { return len(b.Predictions) }

// Interface for a Metric.
type Interface interface {
	// Name of the metric.
	Name() string

	// ShortName is a shortened version of the name (preferably a few characters) to display in progress bars or
	// similar UIs.
	ShortName() string

	// MetricType is a key for metrics that share the same quantity or semantics. Eg.:
	// "Moving-Average-Accuracy" and "Batch-Accuracy" would both have the same
	// "accuracy" metric type, and for instance, can be displayed on the same plot, sharing
	// the Y-axis.
	MetricType() string

	// Update the metric with a new batch, and return its current value.
	Update(batch *Batch) float64

	// PrettyPrint is used to pretty-print a metric value, usually in a short form.
	PrettyPrint(value float64) string

	// Reset metrics internal counters when starting a new evaluation.
	Reset()
}

const (
	// LossMetricType is the type of loss metrics.
	// Used to aggregate metrics of the same  type in the same plot.
	LossMetricType = "loss"

	// AccuracyMetricType is the type of accuracy metrics.
	// Used to aggregate metrics of the same  type in the same plot.
	AccuracyMetricType = "accuracy"
)

// BaseMetricFn computes a metric for a batch: it should return the mean value for the given batch.
type BaseMetricFn func(batch *Batch) float64

// PrettyPrintFn is a function to convert a metric value to a string.
type PrettyPrintFn func(value float64) string

// baseMetric implements a stateless metric.Interface.
type baseMetric struct {
	name, shortName, metricType string
	metricFn                    BaseMetricFn
	pPrintFn                    PrettyPrintFn // if nil will display default.
}

func (m *baseMetric) Name() string {
	return m.name
}

func (m *baseMetric) ShortName() string {
	return m.shortName
}

func (m *baseMetric) MetricType() string {
	return m.metricType
}

// batchValue calls the metric function, converting a panic to an error with the metric name.
func (m *baseMetric) batchValue(batch *Batch) float64 {
	var value float64
	err := exceptions.TryCatch[error](func() { value = m.metricFn(batch) })
	if err != nil {
		panic(errors.WithMessagef(err, "failed computing metric %q", m.Name()))
	}
	return value
}

func (m *baseMetric) Update(batch *Batch) float64 {
	return m.batchValue(batch)
}

func (m *baseMetric) PrettyPrint(value float64) string {
	if m.pPrintFn == nil {
		return fmt.Sprintf("%.3g", value)
	}
	return m.pPrintFn(value)
}

// Reset implements metrics.Interface: a no-op for stateless metrics.
func (m *baseMetric) Reset() {}

// NewBaseMetric creates a stateless metric from any BaseMetricFn function, it will return the metric
// calculated solely on the last batch.
// pPrintFn can be left as nil, and a default will be used.
func NewBaseMetric(name, shortName, metricType string, metricFn BaseMetricFn, pPrintFn PrettyPrintFn) Interface {
	return &baseMetric{
		name: name, shortName: shortName, metricType: metricType,
		metricFn: metricFn, pPrintFn: pPrintFn}
}

// MeanMetric implements a metric that keeps the mean of a metric.
type MeanMetric struct {
	baseMetric
	dynamicBatch  bool
	total, weight float64
}

// NewMeanMetric creates a metric from any BaseMetricFn function.
//
// Each batch is weighted by its size. If you want all batches to count the same, use WithDynamicBatch(false).
//
// `prettyPrintFn` can be left as nil, and a default will be used.
func NewMeanMetric(name, shortName, metricType string, metricFn BaseMetricFn, prettyPrintFn PrettyPrintFn) *MeanMetric {
	return &MeanMetric{
		baseMetric: baseMetric{
			name:       name,
			shortName:  shortName,
			metricType: metricType,
			metricFn:   metricFn,
			pPrintFn:   prettyPrintFn,
		},
		dynamicBatch: true,
	}
}

// WithDynamicBatch sets whether the mean should weight each batch by its size. Default is true.
//
// If set to false, each batch counts as 1.
func (m *MeanMetric) WithDynamicBatch(dynamicBatch bool) *MeanMetric {
	m.dynamicBatch = dynamicBatch
	return m
}

// Update implements metrics.Interface.
func (m *MeanMetric) Update(batch *Batch) float64 {
	result := m.batchValue(batch)
	resultWeight := 1.0
	if m.dynamicBatch {
		resultWeight = float64(max(batch.Size(), 1))
	}
	m.total += result * resultWeight
	m.weight += resultWeight
	return m.total / m.weight
}

// Reset implements metrics.Interface.
func (m *MeanMetric) Reset() {
	m.total, m.weight = 0, 0
}

// movingAverageMetric implements a metric that keeps the moving average of a metric.
//
// Each new batch has weight of newExampleWeight, and the previous mean (1-newExampleWeight).
type movingAverageMetric struct {
	baseMetric
	newExampleWeight float64
	mean, count      float64
}

// NewExponentialMovingAverageMetric creates a metric from any BaseMetricFn function. It takes new examples with
// the given weight (newExampleWeight), and decays the reset to 1-newExampleWeight.
//
// A typical value of newExampleWeight is 0.01, the smaller the value, the slower the moving average moves.
// pPrintFn can be left as nil, and a default will be used.
//
// This doesn't have a set prior, it will start being a normal average until there are enough terms, and it becomes
// an exponential moving average.
func NewExponentialMovingAverageMetric(
	name, shortName, metricType string,
	metricFn BaseMetricFn,
	pPrintFn PrettyPrintFn,
	newExampleWeight float64,
) Interface {
	return &movingAverageMetric{baseMetric: baseMetric{
		name: name, shortName: shortName, metricType: metricType,
		metricFn: metricFn, pPrintFn: pPrintFn}, newExampleWeight: newExampleWeight}
}

// Update implements metrics.Interface.
func (m *movingAverageMetric) Update(batch *Batch) float64 {
	result := m.batchValue(batch)
	m.count++
	weight := max(m.newExampleWeight, 1.0/m.count)
	m.mean = m.mean*(1-weight) + result*weight
	return m.mean
}

// Reset implements metrics.Interface.
func (m *movingAverageMetric) Reset() {
	m.mean, m.count = 0, 0
}

// LossFn returns the loss of the batch.
func LossFn(batch *Batch) float64 {
	return batch.Loss
}

// NewMeanLoss returns a metric with the mean of the loss over all batches seen since the last Reset.
func NewMeanLoss(name, shortName string) *MeanMetric {
	return NewMeanMetric(name, shortName, LossMetricType, LossFn, nil)
}

// NewMovingAverageLoss returns a metric with the exponential moving average of the loss.
// A typical value of newExampleWeight is 0.01, the smaller the value, the slower the moving average moves.
func NewMovingAverageLoss(name, shortName string, newExampleWeight float64) Interface {
	return NewExponentialMovingAverageMetric(name, shortName, LossMetricType, LossFn, nil, newExampleWeight)
}

func checkBatch(name string, batch *Batch) {
	if len(batch.Labels) != len(batch.Predictions) {
		exceptions.Panicf("%s: batch has %d labels and %d predictions", name, len(batch.Labels), len(batch.Predictions))
	}
	for ii, prediction := range batch.Predictions {
		if len(prediction) == 0 || len(prediction) != len(batch.Labels[ii]) {
			exceptions.Panicf("%s: example #%d has %d labels and %d predictions", name, ii,
				len(batch.Labels[ii]), len(prediction))
		}
	}
}

// BinaryAccuracyFn can be used in combination with New*Metric functions to build metrics for binary accuracy.
// It assumes predictions are probabilities and labels are `{0, 1}`: a prediction is correct if it is less than
// 0.5 away from the label. Only the first output of each example is considered.
func BinaryAccuracyFn(batch *Batch) float64 {
	checkBatch("BinaryAccuracy", batch)
	if batch.Size() == 0 {
		return 0
	}
	var correct int
	for ii, prediction := range batch.Predictions {
		diff := prediction[0] - batch.Labels[ii][0]
		if diff > -0.5 && diff < 0.5 {
			correct++
		}
	}
	return float64(correct) / float64(batch.Size())
}

// SignAccuracyFn can be used in combination with New*Metric functions to build metrics for the accuracy of a
// model trained with labels `{-1, +1}`, like with the losses.Hinge loss: a prediction is correct if it has the same
// sign as the label. Only the first output of each example is considered.
func SignAccuracyFn(batch *Batch) float64 {
	checkBatch("SignAccuracy", batch)
	if batch.Size() == 0 {
		return 0
	}
	var correct int
	for ii, prediction := range batch.Predictions {
		if (prediction[0] > 0) == (batch.Labels[ii][0] > 0) {
			correct++
		}
	}
	return float64(correct) / float64(batch.Size())
}

func accuracyPPrint(value float64) string {
	return fmt.Sprintf("%.2f%%", value*100.0)
}

// NewMeanBinaryAccuracy returns a new binary accuracy metric with the given names.
func NewMeanBinaryAccuracy(name, shortName string) *MeanMetric {
	return NewMeanMetric(name, shortName, AccuracyMetricType, BinaryAccuracyFn, accuracyPPrint)
}

// NewMovingAverageBinaryAccuracy returns a new binary accuracy metric with the given names.
// A typical value of newExampleWeight is 0.01, the smaller the value, the slower the moving average moves.
func NewMovingAverageBinaryAccuracy(name, shortName string, newExampleWeight float64) Interface {
	return NewExponentialMovingAverageMetric(name, shortName, AccuracyMetricType, BinaryAccuracyFn, accuracyPPrint,
		newExampleWeight)
}

// NewMeanSignAccuracy returns a new sign accuracy metric with the given names.
func NewMeanSignAccuracy(name, shortName string) *MeanMetric {
	return NewMeanMetric(name, shortName, AccuracyMetricType, SignAccuracyFn, accuracyPPrint)
}

// NewMovingAverageSignAccuracy returns a new sign accuracy metric with the given names.
// A typical value of newExampleWeight is 0.01, the smaller the value, the slower the moving average moves.
func NewMovingAverageSignAccuracy(name, shortName string, newExampleWeight float64) Interface {
	return NewExponentialMovingAverageMetric(name, shortName, AccuracyMetricType, SignAccuracyFn, accuracyPPrint,
		newExampleWeight)
}
