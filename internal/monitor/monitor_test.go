package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/focalplane-data/fpmeter/internal/circles"
	"github.com/focalplane-data/fpmeter/internal/spots"
)

func sampleFits() []circles.DeviceFit {
	return []circles.DeviceFit{
		{Location: 1010, PinholeID: 0, XFPMetro: 100, YFPMetro: -50, XFP: 100.02, YFP: -50.01, Radius: 1.5, NObs: 12},
		{Location: 1541, PinholeID: 3, XFPMetro: -200, YFPMetro: 150, XFP: -200.01, YFP: 150.0, NObs: 8},
		{Location: 2020, PinholeID: 0, XFPMetro: 0.5, YFPMetro: 0.5, XFP: 0.55, YFP: 0.52, Radius: 2.1, NObs: 10},
	}
}

func TestSaveSpotPlot(t *testing.T) {
	table := []spots.Spot{
		{XFP: 10, YFP: 20, XFPExp: 10.1, YFPExp: 20.05, Location: 1010},
		{XFP: -30, YFP: 5, Location: spots.UnmatchedLocation},
	}
	path := filepath.Join(t.TempDir(), "spots.png")
	if err := SaveSpotPlot(path, table); err != nil {
		t.Fatalf("SaveSpotPlot: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("spot plot file is empty")
	}
}

func TestSaveCirclePlot(t *testing.T) {
	exposures := [][]spots.Spot{
		{{Location: 1010, XFP: 100, YFP: -50}},
		{{Location: 1010, XFP: 101.5, YFP: -50}},
	}
	path := filepath.Join(t.TempDir(), "circles.png")
	if err := SaveCirclePlot(path, exposures, sampleFits()); err != nil {
		t.Fatalf("SaveCirclePlot: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("circle plot file is empty")
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleFits()); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "Device Offsets") {
		t.Error("report missing scatter title")
	}
	if !strings.Contains(html, "Offset Histogram") {
		t.Error("report missing histogram title")
	}
}

func TestWriteReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, nil); err != nil {
		t.Fatalf("WriteReport with no fits: %v", err)
	}
}

func TestSaveReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	if err := SaveReport(path, sampleFits()); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(data) == 0 {
		t.Error("report file is empty")
	}
}
