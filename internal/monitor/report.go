package monitor

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/focalplane-data/fpmeter/internal/circles"
	"github.com/focalplane-data/fpmeter/internal/units"
)

// viridis palette for the offset visual map.
var offsetColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteReport renders an interactive HTML report of the aggregated device
// fits: a focal-plane scatter coloured by metrology offset, and a
// histogram of offset magnitudes.
func WriteReport(w io.Writer, fits []circles.DeviceFit) error {
	page := components.NewPage()
	page.AddCharts(offsetScatter(fits), offsetHistogram(fits))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// SaveReport writes the HTML report to a file.
func SaveReport(path string, fits []circles.DeviceFit) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteReport(f, fits)
}

// offsetUM is the metrology offset magnitude of one fit in microns.
func offsetUM(f circles.DeviceFit) float64 {
	return units.MM2Micron(math.Hypot(f.XFP-f.XFPMetro, f.YFP-f.YFPMetro))
}

func offsetScatter(fits []circles.DeviceFit) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(fits))
	var maxOffset float64
	for _, f := range fits {
		du := offsetUM(f)
		if du > maxOffset {
			maxOffset = du
		}
		data = append(data, opts.ScatterData{Value: []interface{}{f.XFP, f.YFP, du}})
	}
	if maxOffset == 0 {
		maxOffset = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Focal Plane Offsets", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Device Offsets", Subtitle: fmt.Sprintf("devices=%d", len(fits))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (mm)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxOffset),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: offsetColors},
		}),
	)
	scatter.AddSeries("offset (um)", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	return scatter
}

// histogram bucket width in microns.
const histBucketUM = 10.0

func offsetHistogram(fits []circles.DeviceFit) *charts.Bar {
	var maxOffset float64
	for _, f := range fits {
		if du := offsetUM(f); du > maxOffset {
			maxOffset = du
		}
	}
	nBuckets := int(maxOffset/histBucketUM) + 1

	counts := make([]int, nBuckets)
	for _, f := range fits {
		b := int(offsetUM(f) / histBucketUM)
		if b >= nBuckets {
			b = nBuckets - 1
		}
		counts[b]++
	}

	labels := make([]string, nBuckets)
	y := make([]opts.BarData, nBuckets)
	for i := range counts {
		labels[i] = fmt.Sprintf("%.0f", float64(i)*histBucketUM)
		y[i] = opts.BarData{Value: counts[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Offset Histogram", Subtitle: "bucket width 10 um"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "offset (um)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "devices"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("devices", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}
