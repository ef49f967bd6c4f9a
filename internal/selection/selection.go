// Package selection resolves the candidate implementations proposed by
// several agents to at most one implementation per required method.
package selection

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/signalnine/tagteam/internal/extract"
	"github.com/signalnine/tagteam/internal/pyast"
)

// Decision reasons.
const (
	ReasonChosen       = "chosen"
	ReasonTieBreak     = "tie_break"
	ReasonNoCandidate  = "no_candidate"
	ReasonOwnerMissing = "owner_missing"
	ReasonAllInvalid   = "all_invalid"
)

// Decision records how one required method was resolved.
type Decision struct {
	Method string `json:"method"`
	// Proposers are the agent indexes that supplied a candidate.
	Proposers []int `json:"proposers"`
	// Eligible are the proposers left after the ownership filter; only
	// their candidates are compile-checked.
	Eligible []int `json:"eligible"`
	// Valid are the agent indexes whose candidate survived filtering and
	// the compile check.
	Valid []int `json:"valid"`
	// Chosen is the agent whose candidate was used, or -1.
	Chosen int    `json:"chosen"`
	Reason string `json:"reason"`
}

// Resolution is the selector's output.
type Resolution struct {
	// Methods holds exactly one implementation per resolved method.
	Methods map[string]string `json:"methods"`
	// Overlap counts required methods proposed by two or more agents.
	Overlap   int        `json:"overlap"`
	Decisions []Decision `json:"decisions"`
}

// Selector picks implementations. The zero value is usable: it checks
// candidates with tree-sitter and breaks ties with the global random source.
type Selector struct {
	Checker pyast.CompileChecker
	// Rand, when set, makes tie-breaks reproducible. It is guarded
	// internally so one Selector can serve concurrent evaluations.
	Rand   *rand.Rand
	Logger *zap.Logger

	mu sync.Mutex
}

// NewSeeded returns a Selector whose tie-breaks are driven by seed.
func NewSeeded(seed uint64, logger *zap.Logger) *Selector {
	return &Selector{
		Checker: pyast.TreeSitterChecker{},
		Rand:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Logger:  logger,
	}
}

type proposal struct {
	agent  int
	source string
}

// Select resolves required methods from the per-agent candidate maps. A
// non-empty assignment restricts each method to its owning agent. Select
// never fails: invalid or missing candidates leave a method unresolved.
func (s *Selector) Select(ctx context.Context, maps []extract.Candidates, required []string, assignment map[string]int) *Resolution {
	res := &Resolution{Methods: make(map[string]string)}
	seen := make(map[string]bool, len(required))
	for _, name := range required {
		if seen[name] {
			continue
		}
		seen[name] = true

		var proposals []proposal
		for agent, m := range maps {
			if src, ok := m[name]; ok {
				proposals = append(proposals, proposal{agent: agent, source: src})
			}
		}
		if len(proposals) >= 2 {
			res.Overlap++
		}

		d := Decision{Method: name, Proposers: agents(proposals), Valid: []int{}, Chosen: -1}
		if len(assignment) > 0 {
			proposals = owned(proposals, assignment, name)
		}
		d.Eligible = agents(proposals)

		var valid []proposal
		for _, p := range proposals {
			if s.compiles(ctx, name, p) {
				valid = append(valid, p)
			}
		}
		d.Valid = agents(valid)

		switch {
		case len(d.Proposers) == 0:
			d.Reason = ReasonNoCandidate
		case len(proposals) == 0:
			d.Reason = ReasonOwnerMissing
		case len(valid) == 0:
			d.Reason = ReasonAllInvalid
		case len(valid) == 1:
			d.Chosen, d.Reason = valid[0].agent, ReasonChosen
		default:
			pick := valid[s.intn(len(valid))]
			d.Chosen, d.Reason = pick.agent, ReasonTieBreak
		}
		if d.Chosen >= 0 {
			for _, p := range valid {
				if p.agent == d.Chosen {
					res.Methods[name] = p.source
				}
			}
		}
		s.logger().Debug("method resolved",
			zap.String("method", name),
			zap.Ints("proposers", d.Proposers),
			zap.Ints("valid", d.Valid),
			zap.Int("chosen", d.Chosen),
			zap.String("reason", d.Reason))
		res.Decisions = append(res.Decisions, d)
	}
	return res
}

// Rejected counts eligible candidates that failed the compile check.
func (d Decision) Rejected() int { return len(d.Eligible) - len(d.Valid) }

func owned(proposals []proposal, assignment map[string]int, name string) []proposal {
	owner, ok := assignment[name]
	if !ok {
		return nil
	}
	for _, p := range proposals {
		if p.agent == owner {
			return []proposal{p}
		}
	}
	return nil
}

// compiles checks a candidate on its own, dedented so class-level
// indentation does not count against it. A panicking checker marks the
// candidate invalid.
func (s *Selector) compiles(ctx context.Context, name string, p proposal) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Warn("compile check panicked",
				zap.String("method", name), zap.Int("agent", p.agent), zap.String("panic", fmt.Sprint(r)))
			ok = false
		}
	}()
	checker := s.Checker
	if checker == nil {
		checker = pyast.TreeSitterChecker{}
	}
	if err := checker.Check(ctx, pyast.Dedent(p.source)); err != nil {
		s.logger().Debug("candidate rejected",
			zap.String("method", name), zap.Int("agent", p.agent), zap.Error(err))
		return false
	}
	return true
}

func (s *Selector) intn(n int) int {
	if s.Rand == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Rand.IntN(n)
}

func (s *Selector) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func agents(ps []proposal) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.agent
	}
	return out
}
