package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin HTTP client for the system under test. It speaks the
// public JSON API: token authentication plus CRUD under the
// project/collection/document hierarchy. Every call is a single
// request/response round trip; the client keeps no state beyond the base URL
// and the session token obtained from Login.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a client for the given base URL. The timeout bounds each
// individual request, not the whole session.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend address this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Token returns the current session token, empty if not authenticated.
func (c *Client) Token() string {
	return c.token
}

// SetToken installs an externally obtained session token, so a caller with
// an existing session does not force a second login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Health checks the service health endpoint. Any 2xx response counts as
// healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Code: "api.health", Message: "health endpoint returned non-2xx"}
	}
	return nil
}

// Login authenticates with admin credentials and stores the returned
// session token for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return &ValidationError{Field: "credentials", Reason: "email and password must not be empty"}
	}

	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Project is a top-level container in the system under test.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Collection groups documents inside a project.
type Collection struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document is a single record inside a collection. Fields is schemaless on
// the client side; the server validates against the collection schema.
type Document struct {
	ID           string                 `json:"id"`
	CollectionID string                 `json:"collectionId"`
	Fields       map[string]interface{} `json:"fields"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

func (c *Client) CreateProject(ctx context.Context, name string) (*Project, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "project name must not be empty"}
	}
	var out Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	var out Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CreateCollection(ctx context.Context, projectID, name string) (*Collection, error) {
	if projectID == "" {
		return nil, &ValidationError{Field: "projectId", Reason: "project id must not be empty"}
	}
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "collection name must not be empty"}
	}
	var out Collection
	path := fmt.Sprintf("/api/projects/%s/collections", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCollections(ctx context.Context, projectID string) ([]Collection, error) {
	var out []Collection
	path := fmt.Sprintf("/api/projects/%s/collections", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteCollection(ctx context.Context, projectID, id string) error {
	path := fmt.Sprintf("/api/projects/%s/collections/%s", url.PathEscape(projectID), url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) CreateDocument(ctx context.Context, collectionID string, fields map[string]interface{}) (*Document, error) {
	if collectionID == "" {
		return nil, &ValidationError{Field: "collectionId", Reason: "collection id must not be empty"}
	}
	var out Document
	path := fmt.Sprintf("/api/collections/%s/documents", url.PathEscape(collectionID))
	if err := c.do(ctx, http.MethodPost, path, map[string]interface{}{"fields": fields}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetDocument(ctx context.Context, collectionID, id string) (*Document, error) {
	var out Document
	path := fmt.Sprintf("/api/collections/%s/documents/%s", url.PathEscape(collectionID), url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDocument(ctx context.Context, collectionID, id string, fields map[string]interface{}) (*Document, error) {
	var out Document
	path := fmt.Sprintf("/api/collections/%s/documents/%s", url.PathEscape(collectionID), url.PathEscape(id))
	if err := c.do(ctx, http.MethodPatch, path, map[string]interface{}{"fields": fields}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDocuments(ctx context.Context, collectionID string) ([]Document, error) {
	var out []Document
	path := fmt.Sprintf("/api/collections/%s/documents", url.PathEscape(collectionID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, collectionID, id string) error {
	path := fmt.Sprintf("/api/collections/%s/documents/%s", url.PathEscape(collectionID), url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do performs one JSON request/response round trip. Non-2xx responses are
// decoded into an APIError carrying the server's error code when the body
// provides one.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ValidationError{Field: "body", Reason: fmt.Sprintf("request body not serializable: %v", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = "api.unknown"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
		}
	}
	return nil
}
