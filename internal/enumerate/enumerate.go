// Package enumerate expands a registry snapshot into the lazy cross product of
// RMLVO tuples.
//
// For every (model, layout, variant) the option-less tuple is produced first,
// followed by one tuple per declared option. Callers rely on this order.
package enumerate

import (
	"github.com/roach88/keymapcheck/internal/registry"
	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// Sequence yields tuples one at a time. Next returns false once exhausted.
type Sequence interface {
	Next() (rmlvo.RMLVO, bool)
}

// Count returns |models| × Σ|variants| × (1+|options|) without enumerating.
func Count(s *registry.Snapshot) int {
	variants := 0
	for _, l := range s.Layouts {
		variants += len(l.Variants)
	}
	return len(s.Models) * variants * (1 + len(s.Options))
}

// Iterator walks the cross product by index. The zero value is not usable;
// obtain one from All. To restart, call All again.
type Iterator struct {
	rules string
	snap  *registry.Snapshot

	model, layout, variant, option int
}

// All returns the number of combinations and an iterator over them.
func All(rules string, s *registry.Snapshot) (int, *Iterator) {
	if rules == "" {
		rules = rmlvo.DefaultRules
	}
	return Count(s), &Iterator{rules: rules, snap: s}
}

// Next implements Sequence.
func (it *Iterator) Next() (rmlvo.RMLVO, bool) {
	s := it.snap
	for it.model < len(s.Models) {
		for it.layout < len(s.Layouts) {
			l := s.Layouts[it.layout]
			if it.variant < len(l.Variants) {
				if it.option <= len(s.Options) {
					option := ""
					if it.option > 0 {
						option = s.Options[it.option-1]
					}
					it.option++
					return rmlvo.New(it.rules, s.Models[it.model], l.Name, l.Variants[it.variant], option), true
				}
				it.option = 0
				it.variant++
				continue
			}
			it.variant = 0
			it.layout++
		}
		it.layout = 0
		it.model++
	}
	return rmlvo.RMLVO{}, false
}

// single yields exactly one tuple.
type single struct {
	tuple rmlvo.RMLVO
	done  bool
}

func (s *single) Next() (rmlvo.RMLVO, bool) {
	if s.done {
		return rmlvo.RMLVO{}, false
	}
	s.done = true
	return s.tuple, true
}

// Single bypasses the registry and yields one tuple built from the filters
// with defaults applied. When several variants are given the first is used.
func Single(f registry.Filters) (int, Sequence) {
	variant := ""
	if len(f.Variants) > 0 {
		variant = f.Variants[0]
	}
	tuple := rmlvo.New(f.RulesName(), wildcardToEmpty(f.Model), wildcardToEmpty(f.Layout), variant, wildcardToEmpty(f.Option))
	return 1, &single{tuple: tuple}
}

func wildcardToEmpty(s string) string {
	if s == "*" {
		return ""
	}
	return s
}
