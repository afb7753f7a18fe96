package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/happynews/internal/storage"
)

// Summary aggregates a window of the fetch audit log.
type Summary struct {
	TotalFetches    int            `json:"total_fetches"`
	TotalBytes      int64          `json:"total_bytes"`
	AvgDuration     time.Duration  `json:"avg_duration"`
	Outcomes        map[string]int `json:"outcomes"`
	StatusCodes     map[int]int    `json:"status_codes"`
	Hosts           map[string]int `json:"hosts"`
	DetectionsBySrc map[string]int `json:"detections_by_src"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Span            time.Duration  `json:"span"`
}

// Blocked is the number of fetches stopped by a bot challenge.
func (s Summary) Blocked() int {
	return s.Outcomes[storage.OutcomeBlocked]
}

// SuccessRate is the share of fetches with outcome ok, in [0, 1].
func (s Summary) SuccessRate() float64 {
	if s.TotalFetches == 0 {
		return 0
	}
	return float64(s.Outcomes[storage.OutcomeOK]) / float64(s.TotalFetches)
}

// Summarize folds records into a Summary.
func Summarize(recs []*storage.FetchRecord) Summary {
	s := Summary{
		Outcomes:        make(map[string]int),
		StatusCodes:     make(map[int]int),
		Hosts:           make(map[string]int),
		DetectionsBySrc: make(map[string]int),
	}
	if len(recs) == 0 {
		return s
	}

	s.StartTime = recs[0].CreatedAt
	s.EndTime = recs[0].CreatedAt

	var total time.Duration
	for _, r := range recs {
		s.TotalFetches++
		s.TotalBytes += r.Bytes
		total += r.Duration
		s.Outcomes[r.Outcome]++
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}
		if r.Host != "" {
			s.Hosts[r.Host]++
		}
		if r.DetectedBot {
			s.DetectionsBySrc[r.DetectionSrc]++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.AvgDuration = total / time.Duration(s.TotalFetches)
	s.Span = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const textTmpl = `happynews fetch audit
---------------------
Window:        {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Span}})
Fetches:       {{.TotalFetches}} ({{percent .SuccessRate}} ok)
Bytes:         {{.TotalBytes}}
Avg duration:  {{.AvgDuration}}

Outcomes:
{{- range $k, $n := .Outcomes}}
  {{$k}}: {{$n}}
{{- else}}
  None
{{- end}}

Status codes:
{{- range $code, $n := .StatusCodes}}
  {{$code}}: {{$n}}
{{- else}}
  None
{{- end}}

Hosts:
{{- range $h, $n := .Hosts}}
  {{$h}}: {{$n}}
{{- else}}
  None
{{- end}}

Bot challenges: {{.Blocked}}
{{- range $src, $n := .DetectionsBySrc}}
  {{$src}}: {{$n}}
{{- end}}
`

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// WriteText writes a plain-text summary.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("text").Funcs(template.FuncMap{"percent": percent}).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>happynews fetch audit</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .val { font-size: 24px; font-weight: bold; }
  .bad { color: #c0392b; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>happynews fetch audit</h1>
  <p>{{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Span}})</p>

  <div class="card"><div>Fetches</div><div class="val">{{.TotalFetches}}</div></div>
  <div class="card"><div>Success</div><div class="val">{{percent .SuccessRate}}</div></div>
  <div class="card"><div>Bot challenges</div><div class="val{{if gt .Blocked 0}} bad{{end}}">{{.Blocked}}</div></div>
  <div class="card"><div>Avg duration</div><div class="val">{{.AvgDuration}}</div></div>

  <h3>Outcomes</h3>
  <table>
    <tr><th>Outcome</th><th>Count</th></tr>
    {{- range $k, $n := .Outcomes}}
    <tr><td>{{$k}}</td><td>{{$n}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Status codes</h3>
  <table>
    <tr><th>Code</th><th>Count</th></tr>
    {{- range $code, $n := .StatusCodes}}
    <tr><td>{{$code}}</td><td>{{$n}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Bot challenges by source</h3>
  <table>
    <tr><th>Source</th><th>Count</th></tr>
    {{- range $src, $n := .DetectionsBySrc}}
    <tr><td>{{$src}}</td><td>{{$n}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes a standalone HTML page.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("html").Funcs(htmltemplate.FuncMap{"percent": percent}).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// Write renders summary in format: text, json or html.
func Write(w io.Writer, summary Summary, format string) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	}
	return fmt.Errorf("report: unknown format %q", format)
}
