package gitlab

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mergelens/mergelens/internal/diff"
	"github.com/mergelens/mergelens/pkg/models"
)

// APIError carries the upstream GitLab status and body snippet so handlers
// can pass the status through instead of collapsing everything to 500.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab api request failed with status %d: %s", e.StatusCode, e.Body)
}

// HTTPClient is a custom client for the GitLab v4 REST API. The official
// client mishandles several MR endpoints (changes, discussions, approvals),
// so those go through direct HTTP requests.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a new GitLab HTTP client
func NewHTTPClient(baseURL, token string, rps float64, timeout time.Duration, insecureSkipVerify bool) *HTTPClient {
	baseURL = strings.TrimSuffix(baseURL, "/")

	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if insecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &HTTPClient{
		baseURL: baseURL + "/api/v4",
		token:   token,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("PRIVATE-TOKEN", c.token)
	if payload != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func projectPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID)
}

func mrPath(projectID string, mrIID int) string {
	return fmt.Sprintf("%s/merge_requests/%d", projectPath(projectID), mrIID)
}

// mergeRequestPayload adds the fields only present on the detail endpoint
type mergeRequestPayload struct {
	models.MergeRequest
	DiffRefs *models.DiffRefs `json:"diff_refs"`
}

// ListMergeRequests lists MRs across all projects the token can see.
// Query parameters (scope, state, reviewer_id, ...) pass through as-is.
func (c *HTTPClient) ListMergeRequests(ctx context.Context, query url.Values) ([]models.MergeRequest, error) {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("per_page") == "" {
		query.Set("per_page", "100")
	}

	var mrs []models.MergeRequest
	if err := c.do(ctx, http.MethodGet, "/merge_requests", query, nil, &mrs); err != nil {
		return nil, err
	}
	return mrs, nil
}

// ListProjectMergeRequests lists MRs for one project
func (c *HTTPClient) ListProjectMergeRequests(ctx context.Context, projectID, state string) ([]models.MergeRequest, error) {
	query := url.Values{"per_page": {"100"}}
	if state != "" {
		query.Set("state", state)
	}

	var mrs []models.MergeRequest
	if err := c.do(ctx, http.MethodGet, projectPath(projectID)+"/merge_requests", query, nil, &mrs); err != nil {
		return nil, err
	}
	return mrs, nil
}

// GetMergeRequest fetches a single MR with its diff refs
func (c *HTTPClient) GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*models.MergeRequest, *models.DiffRefs, error) {
	var payload mergeRequestPayload
	if err := c.do(ctx, http.MethodGet, mrPath(projectID, mrIID), nil, nil, &payload); err != nil {
		return nil, nil, err
	}
	return &payload.MergeRequest, payload.DiffRefs, nil
}

// GetMergeRequestChanges fetches the changed files of an MR with per-file
// addition/deletion counts.
func (c *HTTPClient) GetMergeRequestChanges(ctx context.Context, projectID string, mrIID int) ([]models.DiffFile, error) {
	var payload struct {
		Changes []models.DiffFile `json:"changes"`
	}
	if err := c.do(ctx, http.MethodGet, mrPath(projectID, mrIID)+"/changes", nil, nil, &payload); err != nil {
		return nil, err
	}

	for i := range payload.Changes {
		payload.Changes[i].Additions, payload.Changes[i].Deletions = diff.Stats(payload.Changes[i].Diff)
	}

	return payload.Changes, nil
}

// ListNotes lists the notes on an MR
func (c *HTTPClient) ListNotes(ctx context.Context, projectID string, mrIID int) ([]models.Note, error) {
	query := url.Values{"per_page": {"100"}, "sort": {"asc"}, "order_by": {"created_at"}}

	var notes []models.Note
	if err := c.do(ctx, http.MethodGet, mrPath(projectID, mrIID)+"/notes", query, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// CreateNote posts a plain note on an MR
func (c *HTTPClient) CreateNote(ctx context.Context, projectID string, mrIID int, body string) (*models.Note, error) {
	var note models.Note
	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, mrPath(projectID, mrIID)+"/notes", nil, payload, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote edits an existing note
func (c *HTTPClient) UpdateNote(ctx context.Context, projectID string, mrIID, noteID int, body string) (*models.Note, error) {
	var note models.Note
	payload := map[string]string{"body": body}
	path := fmt.Sprintf("%s/notes/%d", mrPath(projectID, mrIID), noteID)
	if err := c.do(ctx, http.MethodPut, path, nil, payload, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote removes a note
func (c *HTTPClient) DeleteNote(ctx context.Context, projectID string, mrIID, noteID int) error {
	path := fmt.Sprintf("%s/notes/%d", mrPath(projectID, mrIID), noteID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ListDiscussions lists the discussion threads on an MR
func (c *HTTPClient) ListDiscussions(ctx context.Context, projectID string, mrIID int) ([]models.Discussion, error) {
	query := url.Values{"per_page": {"100"}}

	var discussions []models.Discussion
	if err := c.do(ctx, http.MethodGet, mrPath(projectID, mrIID)+"/discussions", query, nil, &discussions); err != nil {
		return nil, err
	}
	return discussions, nil
}

// CreateDiscussion starts a new discussion, optionally anchored to a line
func (c *HTTPClient) CreateDiscussion(ctx context.Context, projectID string, mrIID int, body string, position *models.NotePosition) (*models.Discussion, error) {
	payload := map[string]interface{}{"body": body}
	if position != nil {
		payload["position"] = position
	}

	var discussion models.Discussion
	if err := c.do(ctx, http.MethodPost, mrPath(projectID, mrIID)+"/discussions", nil, payload, &discussion); err != nil {
		return nil, err
	}
	return &discussion, nil
}

// ReplyToDiscussion adds a note to an existing discussion
func (c *HTTPClient) ReplyToDiscussion(ctx context.Context, projectID string, mrIID int, discussionID, body string) (*models.Note, error) {
	var note models.Note
	payload := map[string]string{"body": body}
	path := fmt.Sprintf("%s/discussions/%s/notes", mrPath(projectID, mrIID), url.PathEscape(discussionID))
	if err := c.do(ctx, http.MethodPost, path, nil, payload, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// approvalPayload unwraps the nested approved_by entries
type approvalPayload struct {
	Approved          bool `json:"approved"`
	ApprovalsRequired int  `json:"approvals_required"`
	ApprovalsLeft     int  `json:"approvals_left"`
	UserHasApproved   bool `json:"user_has_approved"`
	UserCanApprove    bool `json:"user_can_approve"`
	ApprovedBy        []struct {
		User models.GitLabUser `json:"user"`
	} `json:"approved_by"`
}

// GetApprovalState fetches the approval status of an MR
func (c *HTTPClient) GetApprovalState(ctx context.Context, projectID string, mrIID int) (*models.ApprovalState, error) {
	var payload approvalPayload
	if err := c.do(ctx, http.MethodGet, mrPath(projectID, mrIID)+"/approvals", nil, nil, &payload); err != nil {
		return nil, err
	}

	state := &models.ApprovalState{
		Approved:          payload.Approved,
		ApprovalsRequired: payload.ApprovalsRequired,
		ApprovalsLeft:     payload.ApprovalsLeft,
		UserHasApproved:   payload.UserHasApproved,
		UserCanApprove:    payload.UserCanApprove,
		ApprovedBy:        make([]models.GitLabUser, 0, len(payload.ApprovedBy)),
	}
	for _, entry := range payload.ApprovedBy {
		state.ApprovedBy = append(state.ApprovedBy, entry.User)
	}

	return state, nil
}

// Approve approves an MR as the token's user
func (c *HTTPClient) Approve(ctx context.Context, projectID string, mrIID int) error {
	return c.do(ctx, http.MethodPost, mrPath(projectID, mrIID)+"/approve", nil, nil, nil)
}

// Unapprove withdraws the token user's approval
func (c *HTTPClient) Unapprove(ctx context.Context, projectID string, mrIID int) error {
	return c.do(ctx, http.MethodPost, mrPath(projectID, mrIID)+"/unapprove", nil, nil, nil)
}

// Merge merges an MR
func (c *HTTPClient) Merge(ctx context.Context, projectID string, mrIID int, squash, removeSourceBranch bool) (*models.MergeRequest, error) {
	payload := map[string]interface{}{
		"squash":                      squash,
		"should_remove_source_branch": removeSourceBranch,
	}

	var mr models.MergeRequest
	if err := c.do(ctx, http.MethodPut, mrPath(projectID, mrIID)+"/merge", nil, payload, &mr); err != nil {
		return nil, err
	}
	return &mr, nil
}
