package scheduler

import (
	"context"
	"fmt"
)

// TestFn is one test body. It performs assertions against the live system
// through the RunContext and returns an error on failure.
type TestFn func(ctx context.Context, rc *RunContext) error

// Test is a named test inside a group. Tests within a group run strictly in
// declaration order; later tests may rely on state left by earlier ones.
type Test struct {
	Name string
	Fn   TestFn
}

// Requirements declares what one-time setup a group's tests assume exists.
type Requirements struct {
	// Auth means the RunContext must hold an authenticated session.
	Auth bool
	// Project means a scratch project must exist.
	Project bool
	// Collection means a scratch collection must exist inside the
	// scratch project.
	Collection bool
}

// union merges two requirement sets.
func (r Requirements) union(o Requirements) Requirements {
	return Requirements{
		Auth:       r.Auth || o.Auth,
		Project:    r.Project || o.Project,
		Collection: r.Collection || o.Collection,
	}
}

// Group is a named batch of related tests with declared dependencies on
// other groups. Groups are registered once at process start and never
// mutated afterwards.
type Group struct {
	Name     string
	Deps     []string
	Requires Requirements
	Tests    []Test
}

// Registry holds the registered groups in registration order. Registration
// order breaks ties among independent groups during scheduling, so runs are
// reproducible.
type Registry struct {
	order  []string
	groups map[string]*Group
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*Group)}
}

// Register adds a group. Duplicate names are a programming error.
func (r *Registry) Register(g Group) error {
	if g.Name == "" {
		return fmt.Errorf("group with empty name")
	}
	if _, ok := r.groups[g.Name]; ok {
		return fmt.Errorf("group %q registered twice", g.Name)
	}
	gc := g
	r.groups[g.Name] = &gc
	r.order = append(r.order, g.Name)
	return nil
}

// MustRegister is Register for init-time wiring, where a duplicate name
// means the binary itself is broken.
func (r *Registry) MustRegister(g Group) {
	if err := r.Register(g); err != nil {
		panic(err)
	}
}

// Get returns a group by name.
func (r *Registry) Get(name string) (*Group, bool) {
	g, ok := r.groups[name]
	return g, ok
}

// Names returns all group names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
