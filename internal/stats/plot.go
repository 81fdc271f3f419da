package stats

import (
	"encoding/csv"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"evogen/internal/model"
)

const (
	plotCSVFile   = "plot.csv"
	PlotImageFile = "fitness.png"
)

var plotCSVHeader = []string{"generation", "best", "mean", "min", "stddev", "diversity"}

// WritePlotCSV writes one row per generation.
func WritePlotCSV(w io.Writer, diagnostics []model.GenerationDiagnostics) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(plotCSVHeader); err != nil {
		return err
	}
	for _, d := range diagnostics {
		if err := writer.Write([]string{
			strconv.Itoa(d.Generation),
			formatFloat(d.BestFitness),
			formatFloat(d.MeanFitness),
			formatFloat(d.MinFitness),
			formatFloat(d.StdDevFitness),
			formatFloat(d.MeanDistance),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// RenderFitnessPlot draws best and mean fitness per generation. The image
// format follows the extension of path.
func RenderFitnessPlot(path, title string, diagnostics []model.GenerationDiagnostics) error {
	if len(diagnostics) == 0 {
		return fmt.Errorf("no generations to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	bestPts := make(plotter.XYs, len(diagnostics))
	meanPts := make(plotter.XYs, len(diagnostics))
	for i, d := range diagnostics {
		bestPts[i].X = float64(d.Generation)
		bestPts[i].Y = d.BestFitness
		meanPts[i].X = float64(d.Generation)
		meanPts[i].Y = d.MeanFitness
	}

	bestLine, err := plotter.NewLine(bestPts)
	if err != nil {
		return err
	}
	bestLine.LineStyle.Color = color.RGBA{R: 200, A: 255}
	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return err
	}
	meanLine.LineStyle.Color = color.RGBA{B: 200, A: 255}
	meanLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
