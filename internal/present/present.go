package present

import (
	"fmt"
	"html"
	"io"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/happynews/internal/news"
	"github.com/FranksOps/happynews/internal/sentiment"
)

// Mode selects the display order of items.
type Mode string

const (
	// ModeChronological orders by pubDate, newest first.
	ModeChronological Mode = "chronological"
	// ModePositiveFirst moves positive items ahead of the rest, newest
	// first within each group.
	ModePositiveFirst Mode = "positive-first"
)

// ParseMode maps a flag value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeChronological:
		return ModeChronological, nil
	case ModePositiveFirst:
		return m, nil
	}
	return "", fmt.Errorf("present: unknown mode %q", s)
}

// Sort returns a sorted copy of items. The input is not modified.
func Sort(items []news.Item, mode Mode) []news.Item {
	out := slices.Clone(items)
	dates := make(map[string]time.Time, len(out))
	for _, it := range out {
		if _, ok := dates[it.PubDate]; !ok {
			dates[it.PubDate] = parseDate(it.PubDate)
		}
	}

	slices.SortStableFunc(out, func(a, b news.Item) int {
		if mode == ModePositiveFirst {
			ap, bp := a.Sentiment == news.Positive, b.Sentiment == news.Positive
			if ap != bp {
				if ap {
					return -1
				}
				return 1
			}
		}
		da, db := dates[a.PubDate], dates[b.PubDate]
		switch {
		case da.IsZero() && db.IsZero():
			return 0
		case da.IsZero():
			return 1
		case db.IsZero():
			return -1
		}
		// newest first
		return db.Compare(da)
	})
	return out
}

// parseDate reads Naver's pubDate. Zero means unparsable.
func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC1123Z, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

var highlightTags = strings.NewReplacer("<b>", "", "</b>", "")

// CleanText drops the <b> highlight tags the search API wraps around query
// hits and decodes HTML entities.
func CleanText(s string) string {
	return html.UnescapeString(highlightTags.Replace(s))
}

// Options controls WriteText.
type Options struct {
	Mode Mode
	// Expand holds 1-based positions (after sorting) whose bodies are printed.
	Expand []int
}

const listTmpl = `{{- range $i, $it := .Items}}
{{pos $i}}. [{{label $it.Sentiment}}] {{clean $it.Title}}
   {{$it.PubDate}}
   {{$it.Link}}
   {{clean $it.Description}}
{{- if expanded $i}}

{{indent (body $it.Contents)}}
{{- end}}
{{else}}
No articles.
{{end}}`

var labels = map[news.Sentiment]string{
	news.Positive: "+",
	news.Negative: "-",
	news.Neutral:  "~",
}

// WriteText renders items as a numbered list for a terminal.
func WriteText(w io.Writer, items []news.Item, opts Options) error {
	expand := make(map[int]bool, len(opts.Expand))
	for _, p := range opts.Expand {
		expand[p] = true
	}

	funcs := template.FuncMap{
		"pos":      func(i int) int { return i + 1 },
		"label":    func(s news.Sentiment) string { return labels[s] },
		"clean":    CleanText,
		"expanded": func(i int) bool { return expand[i+1] },
		"body":     sentiment.PlainText,
		"indent": func(s string) string {
			return "   " + strings.ReplaceAll(s, "\n", "\n   ")
		},
	}

	t, err := template.New("list").Funcs(funcs).Parse(listTmpl)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}

	data := struct{ Items []news.Item }{Items: Sort(items, opts.Mode)}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}
