package worker

import (
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// TypeFilter matches task types against a glob such as "scan", "*" or
// "{grading,verification}".
type TypeFilter struct {
	pattern string
	g       glob.Glob
}

// NewTypeFilter compiles pattern. An empty pattern matches every type.
func NewTypeFilter(pattern string) (*TypeFilter, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.NewValidationError("invalid type pattern").
			WithField("types").WithValue(pattern)
	}
	return &TypeFilter{pattern: pattern, g: g}, nil
}

// String returns the pattern.
func (f *TypeFilter) String() string { return f.pattern }

// Match reports whether typ matches.
func (f *TypeFilter) Match(typ taskqueue.Type) bool {
	return f.g.Match(string(typ))
}

// Filter returns the records whose type matches, preserving order.
func (f *TypeFilter) Filter(recs []*taskqueue.Record) []*taskqueue.Record {
	out := make([]*taskqueue.Record, 0, len(recs))
	for _, rec := range recs {
		if f.Match(rec.Type) {
			out = append(out, rec)
		}
	}
	return out
}
