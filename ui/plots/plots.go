// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plots collects metrics during training and renders them, along with decision boundaries of
// trained models, to image files using gonum.org/v1/plot.
package plots

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Point is one measurement of a metric during training: it's what is collected, plotted and saved.
type Point struct {
	// MetricName is the full name, e.g.: "Mean Loss on eval".
	MetricName string

	// Short name used in tables and progress bars, e.g.: "#loss(eva)".
	Short string

	// MetricType groups metrics that share a plot, e.g.: "loss" or "accuracy".
	MetricType string

	// Step is the Trainer global step when the metric was measured.
	Step float64

	// Value of the metric.
	Value float64
}

// Plotter receives the points collected during training. It is implemented by Collector.
type Plotter interface {
	// AddPoint adds the measurement of one metric.
	AddPoint(point Point)

	// DynamicSampleDone is called once all the points of a sample (one evaluation at a given step) were
	// added. incomplete is true if some of the metrics were NaN or infinite, and hence not added.
	DynamicSampleDone(incomplete bool)
}

// AddTrainAndEvalMetrics adds to plotter a sample with the training metrics (trainMetrics are the values
// returned by the last train step) and with the evaluation metrics of the model on each of evalDatasets.
//
// The first train metric ("Batch Loss") is skipped: it is too noisy to be plotted.
func AddTrainAndEvalMetrics(plotter Plotter, loop *train.Loop, trainMetrics []float64, evalDatasets []train.Dataset) error {
	step := float64(loop.Trainer.GlobalStep())
	incomplete := false
	add := func(desc metrics.Interface, name, short string, value float64) {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			incomplete = true
			return
		}
		plotter.AddPoint(Point{MetricName: name, Short: short, MetricType: desc.MetricType(), Step: step, Value: value})
	}
	for ii, desc := range loop.Trainer.TrainMetrics()[1:] {
		add(desc, "Train: "+desc.Name(), "T/"+desc.ShortName(), trainMetrics[ii+1])
	}
	for _, ds := range evalDatasets {
		values, err := loop.Trainer.Eval(ds)
		if err != nil {
			return errors.WithMessagef(err, "while collecting metrics at step %d", int(step))
		}
		for ii, desc := range loop.Trainer.EvalMetrics() {
			add(desc, fmt.Sprintf("%s on %s", desc.Name(), ds.Name()),
				fmt.Sprintf("%s(%s)", desc.ShortName(), train.ShortName(ds)), values[ii])
		}
	}
	plotter.DynamicSampleDone(incomplete)
	return nil
}

// LoadPoints reads the points saved to filePath by CreatePointsWriter (or Collector.WithFile): one
// JSON object per line.
func LoadPoints(filePath string) (points []Point, err error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read points from %q", filePath)
	}
	for lineNum, line := range bytes.Split(contents, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var point Point
		if err = json.Unmarshal(line, &point); err != nil {
			return nil, errors.Wrapf(err, "failed to parse point in %q, line %d", filePath, lineNum+1)
		}
		points = append(points, point)
	}
	return points, nil
}

// CreatePointsWriter appends the points sent to pointWriter to filePath, one JSON object per line, in a
// separate goroutine.
//
// Once pointWriter is closed, the first error that happened (or nil) is sent to errReport. After an error,
// the remaining points are discarded.
func CreatePointsWriter(filePath string) (pointWriter chan<- Point, errReport <-chan error) {
	points := make(chan Point, 100)
	errs := make(chan error, 1)
	go func() {
		errs <- writePoints(filePath, points)
	}()
	return points, errs
}

func writePoints(filePath string, points <-chan Point) (err error) {
	defer func() {
		for range points {
			// Drain the channel, so the senders don't block.
		}
	}()
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		err = errors.Wrapf(err, "failed to open points file %q", filePath)
		klog.Errorf("plots: %v", err)
		return err
	}
	enc := json.NewEncoder(f)
	for point := range points {
		if err = enc.Encode(point); err != nil {
			err = errors.Wrapf(err, "failed to write point %+v to %q", point, filePath)
			klog.Errorf("plots: %v", err)
			_ = f.Close()
			return err
		}
	}
	return errors.Wrapf(f.Close(), "failed to close points file %q", filePath)
}

// Points indexes a collection of Point by their Step.
type Points map[float64][]Point

// NewPoints indexes the given points by their step.
func NewPoints(rawPoints []Point) Points {
	points := make(Points)
	for _, p := range rawPoints {
		points.add(p)
	}
	return points
}

func (points Points) add(p Point) {
	points[p.Step] = append(points[p.Step], p)
}

// Steps returns the steps with at least one point, in increasing order.
func (points Points) Steps() []float64 {
	return slices.Sorted(maps.Keys(points))
}

// Map calls fn on every point, in step order. Points of the same step are visited in insertion order.
func (points Points) Map(fn func(p *Point)) {
	for _, step := range points.Steps() {
		for ii := range points[step] {
			fn(&points[step][ii])
		}
	}
}

// Extract returns all the points in a flat list, in step order.
func (points Points) Extract() (rawPoints []Point) {
	points.Map(func(p *Point) { rawPoints = append(rawPoints, *p) })
	return
}

// MetricsNames returns the names of the metrics present, ordered by metric type, and by name within each type.
func (points Points) MetricsNames() []string {
	types := make(map[string]string)
	points.Map(func(p *Point) { types[p.MetricName] = p.MetricType })
	names := slices.Collect(maps.Keys(types))
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(types[a], types[b]), cmp.Compare(a, b))
	})
	return names
}

// MetricSeries returns the steps and values of the given metric, in step order.
func (points Points) MetricSeries(metricName string) (steps, values []float64) {
	points.Map(func(p *Point) {
		if p.MetricName == metricName {
			steps = append(steps, p.Step)
			values = append(values, p.Value)
		}
	})
	return
}

// TableForMetrics returns a table with one row per step: the first column is the step, followed by
// one column per metric in metricNames. If metricNames is empty, all metrics are included.
func (points Points) TableForMetrics(metricNames ...string) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	if len(metricNames) == 0 {
		metricNames = points.MetricsNames()
	}
	table.Headers(append([]string{"Step"}, metricNames...)...)
	for _, step := range points.Steps() {
		row := make([]string, 1+len(metricNames))
		row[0] = fmt.Sprintf("%.0f", step)
		for _, pt := range points[step] {
			if idx := slices.Index(metricNames, pt.MetricName); idx != -1 {
				row[idx+1] = fmt.Sprintf("%.4g", pt.Value)
			}
		}
		table.Row(row...)
	}
	return table.String()
}

func (points Points) String() string {
	return points.TableForMetrics()
}
