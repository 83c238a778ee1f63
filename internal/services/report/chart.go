package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/mcurrie/stockboard/internal/models"
)

// seriesPalette cycles across user series.
var seriesPalette = []string{
	"2563eb", // blue-600
	"16a34a", // green-600
	"dc2626", // red-600
	"9333ea", // purple-600
	"ea580c", // orange-600
	"0891b2", // cyan-600
	"ca8a04", // yellow-600
	"db2777", // pink-600
	"4b5563", // gray-600
	"65a30d", // lime-600
}

// ChartRenderer renders leaderboard time series to PNG bytes with go-chart.
type ChartRenderer struct{}

// NewChartRenderer creates a chart renderer.
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{}
}

// Render draws one line per series, an optional dashed reference overlay,
// and optional point annotations (e.g. highest/lowest value markers).
// Returns raw PNG bytes.
func (r *ChartRenderer) Render(title string, series []models.NamedSeries, reference *models.NamedSeries, markers []models.ChartMarker) ([]byte, error) {
	var chartSeries []chart.Series
	plotted := 0

	for i, s := range series {
		if len(s.Points) < 2 {
			continue
		}
		xValues, yValues := splitPoints(s.Points)
		chartSeries = append(chartSeries, chart.TimeSeries{
			Name: s.Name,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(seriesPalette[i%len(seriesPalette)]),
				StrokeWidth: 2.0,
			},
			XValues: xValues,
			YValues: yValues,
		})
		plotted++
	}

	if plotted == 0 {
		return nil, fmt.Errorf("no series with at least 2 data points")
	}

	if reference != nil && len(reference.Points) >= 2 {
		xValues, yValues := splitPoints(reference.Points)
		chartSeries = append(chartSeries, chart.TimeSeries{
			Name: reference.Name,
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("f59e0b"), // amber-500
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: xValues,
			YValues: yValues,
		})
	}

	if len(markers) > 0 {
		annotations := make([]chart.Value2, 0, len(markers))
		for _, m := range markers {
			annotations = append(annotations, chart.Value2{
				XValue: chart.TimeToFloat64(m.Point.Timestamp),
				YValue: m.Point.Value,
				Label:  m.Label,
			})
		}
		chartSeries = append(chartSeries, chart.AnnotationSeries{
			Annotations: annotations,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("6b7280"), // gray-500
			},
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 2 15:04")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
		Series: chartSeries,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

func splitPoints(points []models.SeriesPoint) ([]time.Time, []float64) {
	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = p.Timestamp
		yValues[i] = p.Value
	}
	return xValues, yValues
}
