// Package assemble splices resolved method implementations into a class
// skeleton.
package assemble

import (
	"context"
	"sort"

	"github.com/signalnine/tagteam/internal/pyast"
)

// Gap reasons.
const (
	GapNoClass = "class_not_found"
	GapNoStub  = "stub_not_found"
	GapParse   = "skeleton_unparseable"
)

// Gap is a resolved method the assembler could not place.
type Gap struct {
	Method string `json:"method"`
	Reason string `json:"reason"`
}

type splice struct {
	start, end uint32
	text       string
}

// Assemble replaces the stub of every method in resolved with its
// implementation, re-indented to the stub's level. Everything else in the
// skeleton is kept byte for byte. Methods whose stub cannot be located are
// returned as gaps and left out; Assemble itself never fails.
func Assemble(skeleton, className string, resolved map[string]string) (string, []Gap) {
	if len(resolved) == 0 {
		return skeleton, nil
	}
	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)

	gapAll := func(reason string) []Gap {
		gaps := make([]Gap, len(names))
		for i, name := range names {
			gaps[i] = Gap{Method: name, Reason: reason}
		}
		return gaps
	}

	f, err := pyast.Parse(context.Background(), []byte(skeleton))
	if err != nil {
		return skeleton, gapAll(GapParse)
	}
	defer f.Close()
	cls, ok := f.Class(className)
	if !ok {
		return skeleton, gapAll(GapNoClass)
	}

	var (
		splices []splice
		gaps    []Gap
	)
	for _, name := range names {
		stub, ok := cls.Method(name)
		if !ok {
			gaps = append(gaps, Gap{Method: name, Reason: GapNoStub})
			continue
		}
		indent := stub.Indent
		if indent == "" {
			indent = "    "
		}
		text := pyast.Reindent(resolved[name], indent)
		if stub.Start > 0 && skeleton[stub.Start-1] != '\n' {
			// The stub shares a line with the class header; give the
			// replacement its own lines.
			text = "\n" + text
		}
		splices = append(splices, splice{start: stub.Start, end: stub.End, text: text})
	}

	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })
	out := skeleton
	for _, s := range splices {
		out = out[:s.start] + s.text + out[s.end:]
	}
	return out, gaps
}

// Required derives the required method set from a skeleton: the class's
// unfinished methods, in declaration order. It returns nil when the class
// cannot be found.
func Required(skeleton, className string) []string {
	f, err := pyast.Parse(context.Background(), []byte(skeleton))
	if err != nil {
		return nil
	}
	defer f.Close()
	cls, ok := f.Class(className)
	if !ok {
		return nil
	}
	return cls.StubMethods()
}
