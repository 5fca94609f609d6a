package groups

import (
	"context"
	"errors"
	"fmt"

	"harness/internal/client"
	"harness/internal/scheduler"
)

// Default returns the registry of all test groups. Registration order is
// the tiebreaker for scheduling, so groups are listed roughly in the order
// a full run should visit them.
func Default() *scheduler.Registry {
	reg := scheduler.NewRegistry()
	reg.MustRegister(healthGroup())
	reg.MustRegister(authGroup())
	reg.MustRegister(projectsGroup())
	reg.MustRegister(collectionsGroup())
	reg.MustRegister(documentsGroup())
	return reg
}

func healthGroup() scheduler.Group {
	return scheduler.Group{
		Name: "health",
		Tests: []scheduler.Test{
			{Name: "api responds", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				return rc.Client.Health(ctx)
			}},
			{Name: "health is repeatable", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				if err := rc.Client.Health(ctx); err != nil {
					return err
				}
				return rc.Client.Health(ctx)
			}},
		},
	}
}

func authGroup() scheduler.Group {
	return scheduler.Group{
		Name: "auth",
		Deps: []string{"health"},
		Tests: []scheduler.Test{
			{Name: "login succeeds", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				if err := rc.Client.Login(ctx, rc.AdminEmail, rc.AdminPassword); err != nil {
					return err
				}
				if rc.Client.Token() == "" {
					return errors.New("login returned no token")
				}
				return nil
			}},
			{Name: "wrong password is rejected", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				// Probe with a throwaway client so the session token
				// of the run is never clobbered.
				probe := client.New(rc.Client.BaseURL(), rc.Client.Timeout())
				err := probe.Login(ctx, rc.AdminEmail, "definitely-wrong")
				var apiErr *client.APIError
				if !errors.As(err, &apiErr) {
					return fmt.Errorf("expected an API error, got %v", err)
				}
				if apiErr.StatusCode != 401 && apiErr.StatusCode != 403 {
					return fmt.Errorf("expected 401/403, got %d", apiErr.StatusCode)
				}
				return nil
			}},
		},
	}
}

func projectsGroup() scheduler.Group {
	return scheduler.Group{
		Name:     "projects",
		Deps:     []string{"auth"},
		Requires: scheduler.Requirements{Auth: true},
		Tests: []scheduler.Test{
			{Name: "create", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				p, err := rc.Client.CreateProject(ctx, "harness-projects-case")
				if err != nil {
					return err
				}
				rc.Put("projects.id", p.ID)
				return nil
			}},
			{Name: "get returns what create made", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, ok := rc.Get("projects.id")
				if !ok {
					return errors.New("no project id from create test")
				}
				p, err := rc.Client.GetProject(ctx, id)
				if err != nil {
					return err
				}
				if p.Name != "harness-projects-case" {
					return fmt.Errorf("project name %q, want %q", p.Name, "harness-projects-case")
				}
				return nil
			}},
			{Name: "list contains it", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, _ := rc.Get("projects.id")
				all, err := rc.Client.ListProjects(ctx)
				if err != nil {
					return err
				}
				for _, p := range all {
					if p.ID == id {
						return nil
					}
				}
				return fmt.Errorf("project %s missing from list of %d", id, len(all))
			}},
			{Name: "delete", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, _ := rc.Get("projects.id")
				if err := rc.Client.DeleteProject(ctx, id); err != nil {
					return err
				}
				// A deleted project must be gone.
				_, err := rc.Client.GetProject(ctx, id)
				var apiErr *client.APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
					return fmt.Errorf("expected 404 after delete, got %v", err)
				}
				return nil
			}},
		},
	}
}

func collectionsGroup() scheduler.Group {
	return scheduler.Group{
		Name:     "collections",
		Deps:     []string{"projects"},
		Requires: scheduler.Requirements{Auth: true, Project: true},
		Tests: []scheduler.Test{
			{Name: "create", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				c, err := rc.Client.CreateCollection(ctx, rc.ProjectID, "items")
				if err != nil {
					return err
				}
				rc.Put("collections.id", c.ID)
				return nil
			}},
			{Name: "list contains it", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, _ := rc.Get("collections.id")
				all, err := rc.Client.ListCollections(ctx, rc.ProjectID)
				if err != nil {
					return err
				}
				for _, c := range all {
					if c.ID == id {
						return nil
					}
				}
				return fmt.Errorf("collection %s missing from list of %d", id, len(all))
			}},
			{Name: "duplicate name is rejected", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				_, err := rc.Client.CreateCollection(ctx, rc.ProjectID, "items")
				var apiErr *client.APIError
				if !errors.As(err, &apiErr) {
					return fmt.Errorf("expected an API error, got %v", err)
				}
				return nil
			}},
			{Name: "delete", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, _ := rc.Get("collections.id")
				return rc.Client.DeleteCollection(ctx, rc.ProjectID, id)
			}},
		},
	}
}

func documentsGroup() scheduler.Group {
	return scheduler.Group{
		Name:     "documents",
		Deps:     []string{"collections"},
		Requires: scheduler.Requirements{Auth: true, Project: true, Collection: true},
		Tests: []scheduler.Test{
			{Name: "create", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				d, err := rc.Client.CreateDocument(ctx, rc.CollectionID, map[string]interface{}{
					"title": "first",
					"body":  "hello",
				})
				if err != nil {
					return err
				}
				rc.Put("documents.id", d.ID)
				return nil
			}},
			{Name: "get", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, ok := rc.Get("documents.id")
				if !ok {
					return errors.New("no document id from create test")
				}
				d, err := rc.Client.GetDocument(ctx, rc.CollectionID, id)
				if err != nil {
					return err
				}
				if d.Fields["title"] != "first" {
					return fmt.Errorf("title %v, want %q", d.Fields["title"], "first")
				}
				return nil
			}},
			{Name: "update", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, _ := rc.Get("documents.id")
				d, err := rc.Client.UpdateDocument(ctx, rc.CollectionID, id, map[string]interface{}{
					"title": "second",
				})
				if err != nil {
					return err
				}
				if d.Fields["title"] != "second" {
					return fmt.Errorf("title %v after update, want %q", d.Fields["title"], "second")
				}
				return nil
			}},
			{Name: "list", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				all, err := rc.Client.ListDocuments(ctx, rc.CollectionID)
				if err != nil {
					return err
				}
				if len(all) == 0 {
					return errors.New("list returned no documents")
				}
				return nil
			}},
			{Name: "delete", Fn: func(ctx context.Context, rc *scheduler.RunContext) error {
				id, _ := rc.Get("documents.id")
				if err := rc.Client.DeleteDocument(ctx, rc.CollectionID, id); err != nil {
					return err
				}
				_, err := rc.Client.GetDocument(ctx, rc.CollectionID, id)
				var apiErr *client.APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
					return fmt.Errorf("expected 404 after delete, got %v", err)
				}
				return nil
			}},
		},
	}
}
