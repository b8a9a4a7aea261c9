package permitflowsdk

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

// Client is a minimal Permitflow HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Session is the authoring session view (partial).
type Session struct {
	ID              string         `json:"id"`
	PermitID        string         `json:"permit_id"`
	ActiveStep      int            `json:"active_step"`
	StepName        string         `json:"step_name"`
	Draft           map[string]any `json:"draft"`
	AppliedTemplate string         `json:"applied_template"`
}

// StepResult reports a navigation attempt.
type StepResult struct {
	Moved      bool              `json:"moved"`
	ActiveStep int               `json:"active_step"`
	StepName   string            `json:"step_name"`
	Errors     map[string]string `json:"errors"`
}

// TemplateResult is the response to applying a template.
type TemplateResult struct {
	Session Session        `json:"session"`
	Summary string         `json:"summary"`
	Counts  map[string]int `json:"counts"`
}

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Contractor struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Cedula   string `json:"cedula"`
}

type Department struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Form struct {
	ID               string `json:"_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

type TemplateHeader struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// WorkPermit is a submitted permit (partial).
type WorkPermit struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload"`
	CreatedBy string         `json:"created_by"`
	CreatedAt string         `json:"created_at"`
}

// ErrorCategory classifies an API failure for retry and rendering decisions.
type ErrorCategory string

const (
	// CategoryValidation means the draft failed step validation; FieldErrors
	// carries the per-field messages and retrying without changes is useless.
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuth covers missing, invalid or insufficient credentials.
	CategoryAuth ErrorCategory = "auth"
	// CategoryNotFound means the session, template or permit does not exist.
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict means the request raced another write.
	CategoryConflict ErrorCategory = "conflict"
	// CategoryRequest means the request itself was malformed.
	CategoryRequest ErrorCategory = "request"
	// CategoryServer covers transport failures and 5xx responses; safe to
	// retry.
	CategoryServer ErrorCategory = "server"
)

// APIError wraps non-2xx responses, decoded from the error envelope.
type APIError struct {
	StatusCode  int
	Code        string
	Message     string
	FieldErrors map[string]string
	Body        string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Category maps the response onto the error taxonomy.
func (e *APIError) Category() ErrorCategory {
	switch e.StatusCode {
	case http.StatusUnprocessableEntity:
		return CategoryValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuth
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusConflict:
		return CategoryConflict
	case http.StatusBadRequest:
		return CategoryRequest
	default:
		return CategoryServer
	}
}

// StartSession opens an authoring session. permitID is optional; non-empty
// edits an existing permit.
func (c *Client) StartSession(ctx context.Context, permitID string) (Session, error) {
	body := map[string]any{}
	if permitID != "" {
		body["permitId"] = permitID
	}
	var resp Session
	err := c.do(ctx, http.MethodPost, "sessions", body, &resp)
	return resp, err
}

// GetSession fetches the session state.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID, ""), nil, &resp)
	return resp, err
}

// UpdateDraft patches draft fields. Only keys present in patch change.
func (c *Client) UpdateDraft(ctx context.Context, sessionID string, patch map[string]any) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPatch, c.sessionPath(sessionID, "draft"), patch, &resp)
	return resp, err
}

// Next tries to advance the wizard; Errors on the result holds the blocking
// fields when the step does not validate.
func (c *Client) Next(ctx context.Context, sessionID string) (StepResult, error) {
	var resp StepResult
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "next"), nil, &resp)
	return resp, err
}

// Back returns to the previous step.
func (c *Client) Back(ctx context.Context, sessionID string) (StepResult, error) {
	var resp StepResult
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "back"), nil, &resp)
	return resp, err
}

// ApplyTemplate merges a template onto the draft and returns the change
// summary.
func (c *Client) ApplyTemplate(ctx context.Context, sessionID, templateID string) (TemplateResult, error) {
	var resp TemplateResult
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "template"), map[string]any{"templateId": templateID}, &resp)
	return resp, err
}

// ClearTemplate removes the applied template and resets the fields it owns.
func (c *Client) ClearTemplate(ctx context.Context, sessionID string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodDelete, c.sessionPath(sessionID, "template"), nil, &resp)
	return resp, err
}

// AttachForms attaches auxiliary forms by id.
func (c *Client) AttachForms(ctx context.Context, sessionID string, formIDs []string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "forms"), map[string]any{"formIds": formIDs}, &resp)
	return resp, err
}

// RemoveForm detaches one form.
func (c *Client) RemoveForm(ctx context.Context, sessionID, formID string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodDelete, c.sessionPath(sessionID, "forms/"+url.PathEscape(formID)), nil, &resp)
	return resp, err
}

// SetFormResponses stores responses keyed by form id.
func (c *Client) SetFormResponses(ctx context.Context, sessionID string, responses map[string]any) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPut, c.sessionPath(sessionID, "responses"), map[string]any{"responses": responses}, &resp)
	return resp, err
}

// Submit submits the draft as a work permit. A *APIError with
// CategoryValidation carries the per-field messages in FieldErrors.
func (c *Client) Submit(ctx context.Context, sessionID string) (WorkPermit, error) {
	var resp WorkPermit
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "submit"), nil, &resp)
	return resp, err
}

// Companies lists contracting companies.
func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	var resp []Company
	err := c.do(ctx, http.MethodGet, "directory/companies", nil, &resp)
	return resp, err
}

// Contractors lists active contractors for a company.
func (c *Client) Contractors(ctx context.Context, companyID string) ([]Contractor, error) {
	var resp []Contractor
	err := c.do(ctx, http.MethodGet, "directory/companies/"+url.PathEscape(companyID)+"/contractors", nil, &resp)
	return resp, err
}

// Departments lists approval departments for a company.
func (c *Client) Departments(ctx context.Context, companyID string) ([]Department, error) {
	var resp []Department
	err := c.do(ctx, http.MethodGet, "directory/companies/"+url.PathEscape(companyID)+"/departments", nil, &resp)
	return resp, err
}

// Forms lists active auxiliary forms.
func (c *Client) Forms(ctx context.Context) ([]Form, error) {
	var resp []Form
	err := c.do(ctx, http.MethodGet, "directory/forms", nil, &resp)
	return resp, err
}

// Templates lists template headers, optionally filtered by category.
func (c *Client) Templates(ctx context.Context, category string) ([]TemplateHeader, error) {
	endpoint := "templates"
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}
	var resp []TemplateHeader
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetPermit fetches a submitted permit.
func (c *Client) GetPermit(ctx context.Context, permitID string) (WorkPermit, error) {
	var resp WorkPermit
	err := c.do(ctx, http.MethodGet, "permits/"+url.PathEscape(permitID), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Fields map[string]string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.FieldErrors = envelope.Error.Details.Fields
	}
	return apiErr
}

func (c *Client) sessionPath(sessionID, rest string) string {
	p := "sessions/" + url.PathEscape(sessionID)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
