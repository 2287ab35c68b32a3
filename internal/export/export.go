// Package export renders recorded scale answers from an ActivityWatch
// bucket into a static, self-contained HTML chart.
package export

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mactep/aw-watcher-ask/internal/storage"
)

const bucketPrefix = "aw-watcher-ask_"

// FindBucket picks the watcher's bucket from the server's bucket list.
// With a hostname the exact bucket is required; otherwise the first
// matching bucket (in id order) is used.
func FindBucket(buckets map[string]storage.Bucket, hostname string) (string, bool) {
	if hostname != "" {
		id := bucketPrefix + hostname
		_, ok := buckets[id]
		return id, ok
	}
	var matches []string
	for id := range buckets {
		if strings.HasPrefix(id, bucketPrefix) {
			matches = append(matches, id)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// FilterScale keeps only answered events that carry a numeric value and
// scale bounds; everything else cannot be charted.
func FilterScale(events []storage.RawEvent) []storage.RawEvent {
	var out []storage.RawEvent
	for _, e := range events {
		if ok, _ := e.Data["success"].(bool); !ok {
			continue
		}
		value, _ := e.Data["value"].(string)
		if value == "" {
			continue
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			continue
		}
		if _, ok := e.Data["min-value"]; !ok {
			continue
		}
		if _, ok := e.Data["max-value"]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// dataset is the JSON blob embedded into the rendered page.
type dataset struct {
	Events   []storage.RawEvent `json:"events"`
	MinScale float64            `json:"minScale"`
	MaxScale float64            `json:"maxScale"`
	Titles   []string           `json:"titles"`
	Earliest time.Time          `json:"earliest"`
	Latest   time.Time          `json:"latest"`
}

func buildDataset(events []storage.RawEvent) dataset {
	scale := FilterScale(events)

	d := dataset{Events: scale, MinScale: 1, MaxScale: 10, Titles: []string{}}
	titles := map[string]bool{}
	for i, e := range scale {
		if lo := toFloat(e.Data["min-value"]); i == 0 || lo < d.MinScale {
			d.MinScale = lo
		}
		if hi := toFloat(e.Data["max-value"]); i == 0 || hi > d.MaxScale {
			d.MaxScale = hi
		}
		if t, _ := e.Data["title"].(string); t != "" {
			titles[t] = true
		}
		if i == 0 || e.Timestamp.Before(d.Earliest) {
			d.Earliest = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(d.Latest) {
			d.Latest = e.Timestamp
		}
	}
	if len(scale) == 0 {
		now := time.Now().UTC()
		d.Earliest, d.Latest = now.AddDate(0, 0, -7), now
		d.Events = []storage.RawEvent{}
	}
	for t := range titles {
		d.Titles = append(d.Titles, t)
	}
	sort.Strings(d.Titles)
	return d
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	case int:
		return float64(n)
	}
	return 0
}

var page = template.Must(template.New("visualization").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>aw-watcher-ask — {{.BucketID}}</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4"></script>
<style>
body { font-family: sans-serif; margin: 2rem; }
h1 { font-size: 1.2rem; }
#chart-wrap { max-width: 960px; }
</style>
</head>
<body>
<h1>Scale answers — {{.BucketID}}</h1>
<div id="chart-wrap"><canvas id="chart"></canvas></div>
<script id="dataset" type="application/json">{{.Dataset}}</script>
<script>
const data = JSON.parse(document.getElementById("dataset").textContent);
const colors = [
  "rgb(41, 255, 1)", "rgb(255, 99, 132)", "rgb(54, 162, 235)",
  "rgb(255, 206, 86)", "rgb(75, 192, 192)", "rgb(153, 102, 255)",
  "rgb(255, 159, 64)", "rgb(199, 199, 199)"
];
const datasets = data.titles.map((title, i) => ({
  label: title,
  borderColor: colors[i % colors.length],
  data: data.events
    .filter(e => e.data.title === title)
    .map(e => ({x: e.timestamp, y: parseFloat(e.data.value)})),
}));
new Chart(document.getElementById("chart"), {
  type: "line",
  data: {datasets},
  options: {
    scales: {
      x: {type: "timeseries", min: data.earliest, max: data.latest},
      y: {min: data.minScale, max: data.maxScale},
    },
  },
});
</script>
</body>
</html>
`))

// Render produces the standalone HTML page for the bucket's events.
func Render(events []storage.RawEvent, bucketID string) (string, error) {
	blob, err := json.Marshal(buildDataset(events))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = page.Execute(&b, struct {
		BucketID string
		Dataset  template.JS
	}{BucketID: bucketID, Dataset: template.JS(blob)})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteFile renders the visualization and writes it to path.
func WriteFile(path string, events []storage.RawEvent, bucketID string) error {
	html, err := Render(events, bucketID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write visualization: %w", err)
	}
	return nil
}
