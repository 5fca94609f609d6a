package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"harness/internal/client"
	"harness/pkg/logging"
)

// RunContext carries everything a test body needs: the API client, the
// credentials, identifiers of the one-time scratch resources, and a stash
// for state handed from one test to the next within a group. One RunContext
// serves the whole run; there is no hidden global state anywhere else.
type RunContext struct {
	Client *client.Client

	AdminEmail    string
	AdminPassword string

	// ProjectID and CollectionID identify the scratch resources created
	// during one-time setup, when any selected group requires them.
	ProjectID    string
	CollectionID string

	mu    sync.Mutex
	stash map[string]string
}

// NewRunContext wraps an API client. Credentials may be empty when no
// selected group needs authentication.
func NewRunContext(c *client.Client, email, password string) *RunContext {
	return &RunContext{
		Client:        c,
		AdminEmail:    email,
		AdminPassword: password,
		stash:         make(map[string]string),
	}
}

// Put stores a value for a later test in the same run.
func (rc *RunContext) Put(key, value string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stash[key] = value
}

// Get returns a value stored by an earlier test.
func (rc *RunContext) Get(key string) (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.stash[key]
	return v, ok
}

// ensure performs the one-time setup the union of requirements demands.
// Each step is skipped when the RunContext already satisfies it, so a
// caller-supplied session or project is never redone.
func (rc *RunContext) ensure(ctx context.Context, reqs Requirements) error {
	if reqs.Collection {
		reqs.Project = true
	}
	if reqs.Project {
		reqs.Auth = true
	}

	if reqs.Auth && rc.Client.Token() == "" {
		logging.Info("scheduler", "logging in as %s", rc.AdminEmail)
		if err := rc.Client.Login(ctx, rc.AdminEmail, rc.AdminPassword); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	if reqs.Project && rc.ProjectID == "" {
		name := fmt.Sprintf("harness-%s", uuid.NewString()[:8])
		p, err := rc.Client.CreateProject(ctx, name)
		if err != nil {
			return fmt.Errorf("create scratch project: %w", err)
		}
		rc.ProjectID = p.ID
		logging.Info("scheduler", "scratch project %s (%s)", name, p.ID)
	}

	if reqs.Collection && rc.CollectionID == "" {
		name := fmt.Sprintf("harness-%s", uuid.NewString()[:8])
		c, err := rc.Client.CreateCollection(ctx, rc.ProjectID, name)
		if err != nil {
			return fmt.Errorf("create scratch collection: %w", err)
		}
		rc.CollectionID = c.ID
		logging.Info("scheduler", "scratch collection %s (%s)", name, c.ID)
	}

	return nil
}
