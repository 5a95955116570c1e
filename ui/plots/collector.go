// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"strings"

	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// CollectorName is the name of the hooks registered by Collector.Attach.
const CollectorName = "scalargrad.ui.plots.Collector"

// Collector implements Plotter by collecting the points in memory, and optionally writing them to a file.
// The collected metrics can be rendered to an image with Collector.Plot or Collector.Save.
type Collector struct {
	Points Points

	pointWriter chan<- Point
	errReport   <-chan error
	numSamples  int
	incomplete  int
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{Points: make(Points)}
}

// WithFile makes the Collector also append every point to filePath, as JSON. See LoadPoints to read them back.
func (c *Collector) WithFile(filePath string) *Collector {
	c.pointWriter, c.errReport = CreatePointsWriter(filePath)
	return c
}

// AddPoint implements Plotter.
func (c *Collector) AddPoint(point Point) {
	c.Points.add(point)
	if c.pointWriter != nil {
		c.pointWriter <- point
	}
}

// DynamicSampleDone implements Plotter.
func (c *Collector) DynamicSampleDone(incomplete bool) {
	c.numSamples++
	if incomplete {
		c.incomplete++
	}
}

// NumSamples returns the number of samples collected so far, and how many of those were incomplete.
func (c *Collector) NumSamples() (total, incomplete int) {
	return c.numSamples, c.incomplete
}

// Close the file being written to, if any, and returns the first error that happened while writing.
func (c *Collector) Close() error {
	if c.pointWriter == nil {
		return nil
	}
	close(c.pointWriter)
	c.pointWriter = nil
	return <-c.errReport
}

// Attach the collector to the loop, so it collects the training metrics and evaluates the model on
// the evalDatasets up to numSamples times during the training (always including the last step).
func (c *Collector) Attach(loop *train.Loop, numSamples int, evalDatasets ...train.Dataset) {
	train.NTimesDuringLoop(loop, numSamples, CollectorName, 100, func(loop *train.Loop, metrics []float64) error {
		return AddTrainAndEvalMetrics(c, loop, metrics, evalDatasets)
	})
}

// Plot creates a plot per metric type (e.g.: "loss", "accuracy") with one line per metric.
func (c *Collector) Plot() ([]*plot.Plot, error) {
	metricNames := c.Points.MetricsNames()
	if len(metricNames) == 0 {
		return nil, errors.New("no points collected to plot")
	}
	var plots []*plot.Plot
	typeToPlot := make(map[string]*plot.Plot)
	for _, name := range metricNames {
		metricType := "metrics"
		c.Points.Map(func(p *Point) {
			if p.MetricName == name && p.MetricType != "" {
				metricType = p.MetricType
			}
		})
		p, found := typeToPlot[metricType]
		if !found {
			p = plot.New()
			p.Title.Text = strings.ToUpper(metricType[:1]) + metricType[1:]
			p.X.Label.Text = "Global Step"
			p.Legend.Top = true
			typeToPlot[metricType] = p
			plots = append(plots, p)
		}
		steps, values := c.Points.MetricSeries(name)
		xys := make(plotter.XYs, len(steps))
		for ii := range steps {
			xys[ii].X, xys[ii].Y = steps[ii], values[ii]
		}
		if err := plotutil.AddLinePoints(p, name, xys); err != nil {
			return nil, errors.Wrapf(err, "failed to plot metric %q", name)
		}
	}
	return plots, nil
}

// Save the plots of all the metrics to a PNG file, stacked vertically.
func (c *Collector) Save(filePath string) error {
	plots, err := c.Plot()
	if err != nil {
		return err
	}
	const width, heightPerPlot = 6 * vg.Inch, 4 * vg.Inch
	img := vgimg.New(width, heightPerPlot*vg.Length(len(plots)))
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: len(plots), Cols: 1}
	grid := make([][]*plot.Plot, len(plots))
	for ii, p := range plots {
		grid[ii] = []*plot.Plot{p}
	}
	canvases := plot.Align(grid, tiles, dc)
	for ii, p := range plots {
		p.Draw(canvases[ii][0])
	}
	return savePNG(img, filePath)
}
