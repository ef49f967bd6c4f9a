package sandbox

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Sentinel prefixes the child's summary line.
const Sentinel = "@@TAGTEAM-RESULT@@"

// HarnessFile and CandidateFile are the names written into each run's
// working directory.
const (
	HarnessFile   = "tagteam_harness.py"
	CandidateFile = "candidate.py"
)

//go:embed harness.py
var harnessSource []byte

const summarySchemaJSON = `{
  "oneOf": [
    {
      "type": "object",
      "required": ["syntax_error"],
      "properties": {
        "syntax_error": {"type": "string", "minLength": 1}
      }
    },
    {
      "type": "object",
      "required": ["total", "passed", "failed", "errored", "skipped", "results"],
      "properties": {
        "total":   {"type": "integer", "minimum": 0},
        "passed":  {"type": "integer", "minimum": 0},
        "failed":  {"type": "integer", "minimum": 0},
        "errored": {"type": "integer", "minimum": 0},
        "skipped": {"type": "integer", "minimum": 0},
        "duration_s": {"type": "number"},
        "results": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "outcome"],
            "properties": {
              "id": {"type": "string"},
              "outcome": {"enum": ["passed", "failed", "error", "skipped"]}
            }
          }
        }
      }
    }
  ]
}`

var summarySchema = mustCompileSchema(summarySchemaJSON, "summary.schema.json")

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parsing embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("adding %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling %s: %v", name, err))
	}
	return sch
}

// Summary is the record the child harness prints. When the candidate
// fails to compile only SyntaxError is set.
type Summary struct {
	SyntaxError string `json:"syntax_error,omitempty"`

	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Errored int          `json:"errored"`
	Skipped int          `json:"skipped"`
	Results []CaseResult `json:"results"`
}

var errNoSummary = errors.New("no summary line in child output")

// ParseSummary finds the last sentinel line in stdout and decodes it. The
// record must match the summary schema and, unless it reports a syntax
// error, its counts must add up.
func ParseSummary(stdout string) (*Summary, error) {
	idx := strings.LastIndex(stdout, Sentinel)
	if idx < 0 {
		return nil, errNoSummary
	}
	line := stdout[idx+len(Sentinel):]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	line = strings.TrimSpace(line)

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(line))
	if err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	if err := summarySchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validating summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal([]byte(line), &s); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	if s.SyntaxError != "" {
		return &s, nil
	}
	if s.Passed+s.Failed+s.Errored+s.Skipped != s.Total || len(s.Results) != s.Total {
		return nil, fmt.Errorf("inconsistent summary: total %d, passed %d, failed %d, errored %d, skipped %d, %d results",
			s.Total, s.Passed, s.Failed, s.Errored, s.Skipped, len(s.Results))
	}
	return &s, nil
}
