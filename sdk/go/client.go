package brokerdesksdk

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

// Client is a minimal Brokerdesk HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// User represents the API user model (partial).
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Session is returned by login and invitation acceptance.
type Session struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	User      User   `json:"user"`
}

// Record is a lifecycle-governed entity (policy, claim, invoice or ticket).
// Fields differ per entity so the body is kept as a map.
type Record map[string]any

func (r Record) ID() string     { s, _ := r["id"].(string); return s }
func (r Record) Status() string { s, _ := r["status"].(string); return s }

// AuditEntry represents one audit log row.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	ActorUserID  string         `json:"actorUserId"`
	Before       any            `json:"before"`
	After        any            `json:"after"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    string         `json:"createdAt"`
}

// PaginatedAudit wraps list responses with cursors.
type PaginatedAudit struct {
	Items      []AuditEntry `json:"items"`
	NextCursor string       `json:"nextCursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"email": email, "password": password}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// Me returns the current user and scope.
func (c *Client) Me(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// Get fetches one record. kind is the collection name: policies, claims,
// invoices or tickets.
func (c *Client) Get(ctx context.Context, kind, id string) (Record, error) {
	var resp Record
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s", kind, url.PathEscape(id)), nil, &resp)
	return resp, err
}

// Update sends a partial edit. A nil value clears the field; a "status" key
// requests a transition.
func (c *Client) Update(ctx context.Context, kind, id string, fields map[string]any) (Record, error) {
	var resp Record
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("%s/%s", kind, url.PathEscape(id)), fields, &resp)
	return resp, err
}

// Transition moves a record to status, sending extra as the fields the
// transition requires.
func (c *Client) Transition(ctx context.Context, kind, id, status string, extra map[string]any) (Record, error) {
	fields := map[string]any{"status": status}
	for k, v := range extra {
		fields[k] = v
	}
	return c.Update(ctx, kind, id, fields)
}

// Lifecycle returns the exported blueprint for an entity.
func (c *Client) Lifecycle(ctx context.Context, entity string) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, "lifecycle/"+url.PathEscape(entity), nil, &resp)
	return resp, err
}

// AuditPage returns a paginated audit listing for a resource.
func (c *Client) AuditPage(ctx context.Context, resourceType, resourceID string, limit int, cursor string) (PaginatedAudit, error) {
	q := url.Values{}
	if resourceType != "" {
		q.Set("resource_type", resourceType)
	}
	if resourceID != "" {
		q.Set("resource_id", resourceID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "audit-logs"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedAudit
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details any    `json:"details"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message, apiErr.Details = env.Code, env.Message, env.Details
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
