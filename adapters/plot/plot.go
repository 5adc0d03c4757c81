// Package plot renders an enriched series to a self-contained HTML page
// with four stacked traces: raw data, imputed data, anomaly score and
// anomaly label.
package plot

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
)

// Renderer writes one HTML file per sensor under the configured directory.
type Renderer struct {
	directory string
}

// NewRenderer creates a renderer rooted at dir.
func NewRenderer(dir string) *Renderer {
	if dir == "" {
		dir = "plots"
	}
	return &Renderer{directory: dir}
}

// trace is one plotted line, already JSON-friendly: null marks missing.
type trace struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

type pageData struct {
	Title  string
	Times  template.JS
	Traces template.JS
}

const (
	colorBlue   = "#4353de"
	colorPink   = "#de43a0"
	colorYellow = "#dece43"
	colorGreen  = "green"
)

// Render writes the plot page for one sensor.
func (r *Renderer) Render(sensor core.Sensor, s *series.Series) error {
	if err := os.MkdirAll(r.directory, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory %s: %w", r.directory, err)
	}

	filename := filepath.Join(r.directory, sensor.Name+".html")
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create plot file %s: %w", filename, err)
	}
	defer file.Close()

	return RenderTo(file, sensor.Name, s)
}

// RenderTo writes the plot page to an arbitrary writer, so the same page
// can be served over HTTP as well as written to disk.
func RenderTo(w io.Writer, title string, s *series.Series) error {
	times := make([]string, s.Len())
	for i, t := range s.Times {
		times[i] = t.Format(time.RFC3339)
	}

	traces := []trace{
		{Name: "Values", Values: column(s.Data)},
		{Name: "Imputed values", Values: column(s.ImputedData)},
		{Name: "Anomaly score", Values: column(s.AnomalyScore)},
		{Name: "Anomaly label", Values: column(s.AnomalyLabel)},
	}

	timesJSON, err := json.Marshal(times)
	if err != nil {
		return err
	}
	tracesJSON, err := json.Marshal(traces)
	if err != nil {
		return err
	}

	return pageTemplate.Execute(w, pageData{
		Title:  title,
		Times:  template.JS(timesJSON),
		Traces: template.JS(tracesJSON),
	})
}

func column(col []series.Sample) []*float64 {
	out := make([]*float64, len(col))
	for i := range col {
		if col[i].Valid {
			v := col[i].Value
			out[i] = &v
		}
	}
	return out
}

var pageTemplate = template.Must(template.New("plot").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <script src="https://cdn.plot.ly/plotly-2.32.0.min.js"></script>
</head>
<body>
  <div id="plot" style="height: 95vh;"></div>
  <script>
    const times = {{.Times}};
    const traces = {{.Traces}};
    const colors = ["` + colorBlue + `", "` + colorPink + `", "` + colorYellow + `", "` + colorGreen + `"];
    const data = traces.map((t, i) => ({
      x: times,
      y: t.values,
      name: t.name,
      type: "scatter",
      mode: "lines",
      line: { color: colors[i] },
      xaxis: "x",
      yaxis: "y" + (i + 1),
    }));
    const layout = {
      title: {{.Title}},
      grid: { rows: 4, columns: 1, subplots: [["xy"], ["xy2"], ["xy3"], ["xy4"]] },
      xaxis: { rangeslider: { visible: true }, type: "date" },
    };
    Plotly.newPlot("plot", data, layout);
  </script>
</body>
</html>
`))
