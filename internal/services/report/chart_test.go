package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/mcurrie/stockboard/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G'}

func points(values ...float64) []models.SeriesPoint {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	ps := make([]models.SeriesPoint, len(values))
	for i, v := range values {
		ps[i] = models.SeriesPoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return ps
}

func TestRender_ProducesPNG(t *testing.T) {
	r := NewChartRenderer()

	img, err := r.Render("Top Users Performance Over Time", []models.NamedSeries{
		{Name: "alice", Points: points(1000, 1100, 1050)},
		{Name: "bob", Points: points(900, 950, 1200)},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !bytes.HasPrefix(img, pngHeader) {
		t.Error("output is not a PNG")
	}
}

func TestRender_WithReferenceAndMarkers(t *testing.T) {
	r := NewChartRenderer()

	user := points(1000, 1500, 1200)
	reference := &models.NamedSeries{Name: "SPY (Normalized)", Points: points(1000, 1010, 1020)}
	markers := []models.ChartMarker{
		{Label: "$1,500.00", Point: user[1]},
		{Label: "$1,000.00", Point: user[0]},
	}

	img, err := r.Render("Portfolio Performance vs SPY - alice",
		[]models.NamedSeries{{Name: "alice's Portfolio", Points: user}}, reference, markers)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !bytes.HasPrefix(img, pngHeader) {
		t.Error("output is not a PNG")
	}
}

func TestRender_NoPlottableSeriesIsError(t *testing.T) {
	r := NewChartRenderer()

	_, err := r.Render("empty", []models.NamedSeries{
		{Name: "single-point", Points: points(1000)},
	}, nil, nil)
	if err == nil {
		t.Error("expected error when no series has 2+ points")
	}

	_, err = r.Render("empty", nil, nil, nil)
	if err == nil {
		t.Error("expected error for no series at all")
	}
}

func TestRender_ShortSeriesSkippedNotFatal(t *testing.T) {
	r := NewChartRenderer()

	img, err := r.Render("mixed", []models.NamedSeries{
		{Name: "sparse", Points: points(1000)},
		{Name: "full", Points: points(1000, 1100)},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if len(img) == 0 {
		t.Error("no image produced")
	}
}
