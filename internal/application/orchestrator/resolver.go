package orchestrator

import (
	"github.com/stackd-io/stackd/internal/domain"
)

// Traversal marks for cycle detection
type visitMark int

const (
	markUnvisited visitMark = iota
	markInProgress
	markDone
)

// ResolveOrder computes a deployment order for the given components: for
// every dependency edge u -> v (u depends on v), v precedes u in the result.
//
// The traversal is a depth-first walk with three-color marking. Siblings are
// visited in input list order, so the output is deterministic for a given
// input. The function is pure: it performs no I/O and does not mutate the
// components passed in.
//
// A dependency edge pointing at a component that is already in progress on
// the current path signals a cycle; resolution fails with a
// CircularDependencyError naming that component.
func ResolveOrder(components []*domain.Component) ([]string, error) {
	index := make(map[string]*domain.Component, len(components))
	for _, c := range components {
		index[c.ID] = c
	}

	marks := make(map[string]visitMark, len(components))
	order := make([]string, 0, len(components))

	var visit func(id string) error
	visit = func(id string) error {
		switch marks[id] {
		case markDone:
			return nil
		case markInProgress:
			return &domain.CircularDependencyError{ComponentID: id}
		}
		marks[id] = markInProgress

		c := index[id]
		for _, dep := range c.DependsOn {
			if _, ok := index[dep]; !ok {
				// Unknown ids are rejected at creation time.
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		marks[id] = markDone
		order = append(order, id)
		return nil
	}

	for _, c := range components {
		if err := visit(c.ID); err != nil {
			return nil, err
		}
	}

	return order, nil
}
