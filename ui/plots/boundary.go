// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"image/color"
	"math"
	"os"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Predictor is a model with 2 inputs and at least one output, e.g.: an nn.MLP.
// Only the first output is used.
type Predictor interface {
	Predict(inputs []float64) []float64
}

// DecisionBoundaryResolution is the number of cells in each axis used to sample the model predictions.
var DecisionBoundaryResolution = 80

var (
	negativeColor = color.RGBA{R: 0x30, G: 0x60, B: 0xd0, A: 0xff}
	positiveColor = color.RGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff}
)

// boundaryGrid implements plotter.GridXYZ, sampling the model predictions in a regular grid.
type boundaryGrid struct {
	minX, minY, stepX, stepY float64
	values                   [][]float64 // values[row][col]
}

func newBoundaryGrid(model Predictor, minX, maxX, minY, maxY float64, resolution int) *boundaryGrid {
	grid := &boundaryGrid{
		minX:   minX,
		minY:   minY,
		stepX:  (maxX - minX) / float64(resolution),
		stepY:  (maxY - minY) / float64(resolution),
		values: make([][]float64, resolution),
	}
	for row := range resolution {
		grid.values[row] = make([]float64, resolution)
		for col := range resolution {
			prediction := model.Predict([]float64{grid.X(col), grid.Y(row)})
			if len(prediction) == 0 {
				exceptions.Panicf("plots.DecisionBoundary requires a model with at least one output")
			}
			// Clip, so the colors are not dominated by the far away points.
			grid.values[row][col] = max(-1, min(1, prediction[0]))
		}
	}
	return grid
}

// Dims implements plotter.GridXYZ.
func (g *boundaryGrid) Dims() (c, r int) { return len(g.values[0]), len(g.values) }

// Z implements plotter.GridXYZ.
func (g *boundaryGrid) Z(c, r int) float64 { return g.values[r][c] }

// X implements plotter.GridXYZ: the center of the cell.
func (g *boundaryGrid) X(c int) float64 { return g.minX + (float64(c)+0.5)*g.stepX }

// Y implements plotter.GridXYZ: the center of the cell.
func (g *boundaryGrid) Y(r int) float64 { return g.minY + (float64(r)+0.5)*g.stepY }

// DecisionBoundary plots the predictions of the model over the area covered by the examples of the dataset,
// colored from blue (negative) to red (positive), and the examples themselves on top, colored by their label.
//
// The dataset examples must have 2 inputs and one label, like the ones generated by datasets.Moons.
func DecisionBoundary(model Predictor, ds *datasets.InMemoryDataset, title string) (p *plot.Plot, err error) {
	err = exceptions.TryCatch[error](func() { p = decisionBoundary(model, ds, title) })
	return
}

func decisionBoundary(model Predictor, ds *datasets.InMemoryDataset, title string) *plot.Plot {
	if ds.NumExamples() == 0 {
		exceptions.Panicf("plots.DecisionBoundary requires a non-empty dataset")
	}
	var negatives, positives plotter.XYs
	minX, maxX, minY, maxY := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	for ii := range ds.NumExamples() {
		inputs, labels := ds.Example(ii)
		if len(inputs) != 2 || len(labels) < 1 {
			exceptions.Panicf("plots.DecisionBoundary requires examples with 2 inputs and 1 label, got %d inputs and %d labels",
				len(inputs), len(labels))
		}
		xy := plotter.XY{X: inputs[0], Y: inputs[1]}
		if labels[0] > 0 {
			positives = append(positives, xy)
		} else {
			negatives = append(negatives, xy)
		}
		minX, maxX = min(minX, xy.X), max(maxX, xy.X)
		minY, maxY = min(minY, xy.Y), max(maxY, xy.Y)
	}
	const margin = 0.25
	minX, maxX, minY, maxY = minX-margin, maxX+margin, minY-margin, maxY+margin

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x₀"
	p.Y.Label.Text = "x₁"

	colorMap := moreland.SmoothBlueRed()
	colorMap.SetAlpha(0.6)
	heatMap := plotter.NewHeatMap(
		newBoundaryGrid(model, minX, maxX, minY, maxY, DecisionBoundaryResolution),
		colorMap.Palette(64))
	heatMap.Min, heatMap.Max = -1, 1
	p.Add(heatMap)

	for _, class := range []struct {
		name   string
		points plotter.XYs
		color  color.Color
	}{{"negative", negatives, negativeColor}, {"positive", positives, positiveColor}} {
		if len(class.points) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(class.points)
		if err != nil {
			panic(errors.Wrapf(err, "failed to create scatter plot for %s examples", class.name))
		}
		scatter.GlyphStyle.Color = class.color
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add(class.name, scatter)
	}
	p.X.Min, p.X.Max = minX, maxX
	p.Y.Min, p.Y.Max = minY, maxY
	return p
}

// SaveDecisionBoundary renders DecisionBoundary to a PNG file.
func SaveDecisionBoundary(model Predictor, ds *datasets.InMemoryDataset, title, filePath string) error {
	p, err := DecisionBoundary(model, ds, title)
	if err != nil {
		return err
	}
	img := vgimg.New(6*vg.Inch, 6*vg.Inch)
	p.Draw(draw.New(img))
	return savePNG(img, filePath)
}

// savePNG writes the image canvas to filePath.
func savePNG(img *vgimg.Canvas, filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create plot file %q", filePath)
	}
	if _, err = (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write PNG plot to %q", filePath)
	}
	return errors.Wrapf(f.Close(), "failed to close plot file %q", filePath)
}
