package renderer

import (
	"errors"
	"fmt"
	"os"

	"github.com/wcharczuk/go-chart/v2"
)

// ErrTooFewPoints is returned when a trajectory cannot be drawn as a line.
var ErrTooFewPoints = errors.New("chart needs at least two points")

// TrajectoryChart plots mean cooperation over generations.
func TrajectoryChart(generations, means []float64, title string) chart.Chart {
	return chart.Chart{
		Title:  title,
		Width:  960,
		Height: 360,
		XAxis: chart.XAxis{
			Name:  "generation",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "mean cooperation",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "mean cooperation",
				XValues: generations,
				YValues: means,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
			},
		},
	}
}

// WriteTrajectoryChart renders the trajectory to a PNG file.
func WriteTrajectoryChart(path string, generations, means []float64, title string) (err error) {
	if len(generations) < 2 || len(generations) != len(means) {
		return ErrTooFewPoints
	}
	graph := TrajectoryChart(generations, means, title)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}
