// Package extract pulls candidate method implementations out of an agent's
// free-form output.
package extract

import (
	"context"
	"strings"

	"github.com/signalnine/tagteam/internal/pyast"
)

// Candidates maps a required method name to the source text one agent
// proposed for it.
type Candidates map[string]string

// Extract scans raw for function definitions named in allowed and returns
// the last one found for each name. Definitions at top level or in a class
// body take precedence over helpers nested inside other functions; a nested
// one is used only when nothing shallower has that name. Code is taken from
// fenced blocks when raw contains any, otherwise raw is scanned whole. Spans
// are verbatim: decorators and original indentation are kept and nothing
// is compiled.
func Extract(raw string, allowed []string) Candidates {
	out := make(Candidates)
	if len(allowed) == 0 || strings.TrimSpace(raw) == "" {
		return out
	}
	want := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		want[name] = true
	}
	shallow := make(map[string]bool)
	for _, region := range CodeRegions(raw) {
		f, err := pyast.Parse(context.Background(), []byte(region))
		if err != nil {
			continue
		}
		for _, d := range f.Functions() {
			if !want[d.Name] || (d.Nested && shallow[d.Name]) {
				continue
			}
			out[d.Name] = d.Text(f.Source())
			if !d.Nested {
				shallow[d.Name] = true
			}
		}
		f.Close()
	}
	return out
}

// ExtractAll runs Extract over every agent's output, preserving agent order.
func ExtractAll(outputs []string, allowed []string) []Candidates {
	maps := make([]Candidates, len(outputs))
	for i, raw := range outputs {
		maps[i] = Extract(raw, allowed)
	}
	return maps
}

// CodeRegions splits raw into the bodies of its ``` fenced blocks, in order.
// A fence left open runs to the end of the text. Text without fences is
// returned as a single region.
func CodeRegions(raw string) []string {
	lines := strings.SplitAfter(raw, "\n")
	var (
		regions []string
		cur     strings.Builder
		inFence bool
		fenced  bool
	)
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fenced = true
			if inFence && cur.Len() > 0 {
				regions = append(regions, cur.String())
			}
			cur.Reset()
			inFence = !inFence
			continue
		}
		if inFence {
			cur.WriteString(line)
		}
	}
	if inFence && cur.Len() > 0 {
		regions = append(regions, cur.String())
	}
	if !fenced {
		return []string{raw}
	}
	return regions
}
