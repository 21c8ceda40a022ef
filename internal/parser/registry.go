package parser

import (
	"regexp"
)

// Shape is one known trace record layout.
type Shape struct {
	Kind  RecordKind
	Regex *regexp.Regexp
	// Extract fills rec from the submatches of Regex. A returned error is fatal.
	Extract func(m []string, rec *Record) error
}

// Registry holds record shapes in match priority order.
type Registry struct {
	shapes []Shape
}

func NewRegistry(shapes ...Shape) *Registry {
	return &Registry{shapes: shapes}
}

// Match returns the record of the first shape that matches line.
// A line no shape matches yields a KindNone record and no error.
func (r *Registry) Match(line string) (Record, error) {
	for _, s := range r.shapes {
		m := s.Regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rec := Record{Kind: s.Kind, Raw: line}
		if err := s.Extract(m, &rec); err != nil {
			return Record{}, err
		}
		return rec, nil
	}
	return Record{Kind: KindNone, Raw: line}, nil
}

// Kinds lists the registered kinds in priority order.
func (r *Registry) Kinds() []RecordKind {
	kinds := make([]RecordKind, 0, len(r.shapes))
	for _, s := range r.shapes {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}
