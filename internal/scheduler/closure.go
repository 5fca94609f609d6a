package scheduler

import (
	"fmt"
	"strings"
)

// Closure expands selected into its dependency closure and returns the
// groups in execution order: dependencies before dependents, ties broken by
// registration order. A nil or empty selection means the whole registry.
//
// Unknown names and dependency cycles are configuration errors, reported
// before any test runs.
func Closure(reg *Registry, selected []string) ([]*Group, error) {
	if len(selected) == 0 {
		selected = reg.Names()
	}

	included := make(map[string]bool)
	var walk func(name string, path []string) error
	walk = func(name string, path []string) error {
		for _, p := range path {
			if p == name {
				return fmt.Errorf("dependency cycle: %s", strings.Join(append(path, name), " -> "))
			}
		}
		if included[name] {
			return nil
		}
		g, ok := reg.Get(name)
		if !ok {
			return fmt.Errorf("unknown test group %q", name)
		}
		for _, dep := range g.Deps {
			if err := walk(dep, append(path, name)); err != nil {
				return err
			}
		}
		included[name] = true
		return nil
	}
	for _, name := range selected {
		if err := walk(name, nil); err != nil {
			return nil, err
		}
	}

	// Topological walk over the closure. Scanning the registry order on
	// every pass keeps independent groups in registration order.
	emitted := make(map[string]bool)
	var order []*Group
	for len(order) < len(included) {
		progressed := false
		for _, name := range reg.Names() {
			if !included[name] || emitted[name] {
				continue
			}
			g, _ := reg.Get(name)
			ready := true
			for _, dep := range g.Deps {
				if !emitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				emitted[name] = true
				order = append(order, g)
				progressed = true
			}
		}
		if !progressed {
			// Unreachable once walk has rejected cycles; guards
			// against a future edit breaking that.
			return nil, fmt.Errorf("dependency graph did not resolve")
		}
	}
	return order, nil
}
