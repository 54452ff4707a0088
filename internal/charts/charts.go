package charts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartConfig holds configuration for charts
type ChartConfig struct {
	Title    string
	Subtitle string
	Width    string // e.g. "900px"
	Height   string
	Theme    string
	Smooth   bool
}

// DefaultChartConfig returns default chart configuration
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:  "900px",
		Height: "500px",
		Theme:  "light",
		Smooth: true,
	}
}

func globalOptions(config ChartConfig) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
	}
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

// RenderLossCurve writes the training and validation loss per epoch as an
// interactive line chart. val may be empty.
func RenderLossCurve(train, val []float64, config ChartConfig, outputPath string) error {
	if len(train) == 0 {
		return fmt.Errorf("no loss values to plot")
	}
	if config.Title == "" {
		config.Title = "Model loss"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(append(globalOptions(config),
		charts.WithXAxisOpts(opts.XAxis{Name: "Epoch"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Loss"}),
	)...)

	epochs := make([]string, len(train))
	for i := range train {
		epochs[i] = strconv.Itoa(i + 1)
	}

	line.SetXAxis(epochs).AddSeries("Train Loss", lineData(train))
	if len(val) > 0 {
		line.AddSeries("Validation Loss", lineData(val))
	}
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{
			Smooth: opts.Bool(config.Smooth),
		}),
		charts.WithLabelOpts(opts.Label{
			Show: opts.Bool(false),
		}),
	)

	return render(outputPath, func(w io.Writer) error { return line.Render(w) })
}

// RenderFrequencies writes how often each number was drawn as a bar chart
func RenderFrequencies(counts map[int]int, config ChartConfig, outputPath string) error {
	if config.Title == "" {
		config.Title = "Number frequency"
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(config)...)

	labels := make([]string, 0, 49)
	data := make([]opts.BarData, 0, 49)
	for n := 1; n <= 49; n++ {
		labels = append(labels, strconv.Itoa(n))
		data = append(data, opts.BarData{Value: counts[n]})
	}
	bar.SetXAxis(labels).AddSeries("Draws", data)

	return render(outputPath, func(w io.Writer) error { return bar.Render(w) })
}

func render(outputPath string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	// Create output file
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}

	return nil
}
