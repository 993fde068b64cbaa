package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/pkg/models"
)

// Options configures a Client
type Options struct {
	BaseURL            string
	Token              string
	RateLimitRPS       float64
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client wraps the GitLab REST API. Listing of users and projects goes
// through the official client; MR endpoints use the custom HTTP client
// because the official one mishandles several of them.
type Client struct {
	api   *gitlab.Client
	raw   *HTTPClient
	cache *projectCache
}

// NewClient creates a client for the given GitLab instance and token
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://gitlab.com"
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("gitlab token is required")
	}

	api, err := gitlab.NewClient(opts.Token, gitlab.WithBaseURL(opts.BaseURL+"/api/v4"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	return &Client{
		api:   api,
		raw:   NewHTTPClient(opts.BaseURL, opts.Token, opts.RateLimitRPS, opts.Timeout, opts.InsecureSkipVerify),
		cache: newProjectCache(10 * time.Minute),
	}, nil
}

// CurrentUser validates the token and returns the account it belongs to
func (c *Client) CurrentUser(ctx context.Context) (*models.GitLabUser, error) {
	user, _, err := c.api.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	return &models.GitLabUser{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		State:     user.State,
		AvatarURL: user.AvatarURL,
		WebURL:    user.WebURL,
	}, nil
}

// ListProjects lists projects the user is a member of, most active first
func (c *Client) ListProjects(ctx context.Context, search string, page, perPage int) ([]models.Project, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}

	opts := &gitlab.ListProjectsOptions{
		ListOptions: gitlab.ListOptions{Page: page, PerPage: perPage},
		Membership:  gitlab.Ptr(true),
		OrderBy:     gitlab.Ptr("last_activity_at"),
	}
	if search != "" {
		opts.Search = gitlab.Ptr(search)
	}

	projects, _, err := c.api.Projects.ListProjects(opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	result := make([]models.Project, 0, len(projects))
	for _, p := range projects {
		result = append(result, convertProject(p))
	}
	return result, nil
}

// GetProject fetches a single project
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, _, err := c.api.Projects.GetProject(projectID, &gitlab.GetProjectOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p := convertProject(project)
	c.cache.put(p.ID, p.Name, p.PathWithNamespace)
	return &p, nil
}

// ListUsers lists active users, optionally filtered by a search term
func (c *Client) ListUsers(ctx context.Context, search string) ([]models.GitLabUser, error) {
	opts := &gitlab.ListUsersOptions{
		ListOptions: gitlab.ListOptions{PerPage: 50},
		Active:      gitlab.Ptr(true),
	}
	if search != "" {
		opts.Search = gitlab.Ptr(search)
	}

	users, _, err := c.api.Users.ListUsers(opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]models.GitLabUser, 0, len(users))
	for _, u := range users {
		result = append(result, models.GitLabUser{
			ID:        u.ID,
			Username:  u.Username,
			Name:      u.Name,
			State:     u.State,
			AvatarURL: u.AvatarURL,
			WebURL:    u.WebURL,
		})
	}
	return result, nil
}

func convertProject(p *gitlab.Project) models.Project {
	project := models.Project{
		ID:                p.ID,
		Name:              p.Name,
		NameWithNamespace: p.NameWithNamespace,
		PathWithNamespace: p.PathWithNamespace,
		Description:       p.Description,
		WebURL:            p.WebURL,
		DefaultBranch:     p.DefaultBranch,
	}
	if p.LastActivityAt != nil {
		t := *p.LastActivityAt
		project.LastActivityAt = &t
	}
	return project
}

// ListProjectMergeRequests lists the MRs of one project
func (c *Client) ListProjectMergeRequests(ctx context.Context, projectID, state string) ([]models.MergeRequest, error) {
	return c.raw.ListProjectMergeRequests(ctx, projectID, state)
}

// GetMergeRequest fetches a single MR and its diff refs
func (c *Client) GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*models.MergeRequest, *models.DiffRefs, error) {
	return c.raw.GetMergeRequest(ctx, projectID, mrIID)
}

// GetMergeRequestChanges fetches the changed files of an MR
func (c *Client) GetMergeRequestChanges(ctx context.Context, projectID string, mrIID int) ([]models.DiffFile, error) {
	return c.raw.GetMergeRequestChanges(ctx, projectID, mrIID)
}

// ListNotes lists the notes of an MR
func (c *Client) ListNotes(ctx context.Context, projectID string, mrIID int) ([]models.Note, error) {
	return c.raw.ListNotes(ctx, projectID, mrIID)
}

// CreateNote posts a plain note
func (c *Client) CreateNote(ctx context.Context, projectID string, mrIID int, body string) (*models.Note, error) {
	return c.raw.CreateNote(ctx, projectID, mrIID, body)
}

// UpdateNote edits a note
func (c *Client) UpdateNote(ctx context.Context, projectID string, mrIID, noteID int, body string) (*models.Note, error) {
	return c.raw.UpdateNote(ctx, projectID, mrIID, noteID, body)
}

// DeleteNote removes a note
func (c *Client) DeleteNote(ctx context.Context, projectID string, mrIID, noteID int) error {
	return c.raw.DeleteNote(ctx, projectID, mrIID, noteID)
}

// ListDiscussions lists the discussion threads of an MR
func (c *Client) ListDiscussions(ctx context.Context, projectID string, mrIID int) ([]models.Discussion, error) {
	return c.raw.ListDiscussions(ctx, projectID, mrIID)
}

// CreateDiscussion starts a new thread
func (c *Client) CreateDiscussion(ctx context.Context, projectID string, mrIID int, body string, position *models.NotePosition) (*models.Discussion, error) {
	return c.raw.CreateDiscussion(ctx, projectID, mrIID, body, position)
}

// ReplyToDiscussion adds a note to an existing thread
func (c *Client) ReplyToDiscussion(ctx context.Context, projectID string, mrIID int, discussionID, body string) (*models.Note, error) {
	return c.raw.ReplyToDiscussion(ctx, projectID, mrIID, discussionID, body)
}

// GetApprovalState fetches the approval status of an MR
func (c *Client) GetApprovalState(ctx context.Context, projectID string, mrIID int) (*models.ApprovalState, error) {
	return c.raw.GetApprovalState(ctx, projectID, mrIID)
}

// Approve approves an MR
func (c *Client) Approve(ctx context.Context, projectID string, mrIID int) error {
	return c.raw.Approve(ctx, projectID, mrIID)
}

// Unapprove withdraws approval
func (c *Client) Unapprove(ctx context.Context, projectID string, mrIID int) error {
	return c.raw.Unapprove(ctx, projectID, mrIID)
}

// Merge merges an MR
func (c *Client) Merge(ctx context.Context, projectID string, mrIID int, squash, removeSourceBranch bool) (*models.MergeRequest, error) {
	return c.raw.Merge(ctx, projectID, mrIID, squash, removeSourceBranch)
}

// PostLineComment posts a positioned discussion on a diff line. GitLab
// rejects positions for lines outside the diff context; in that case the
// comment degrades to a plain note carrying the file and line.
func (c *Client) PostLineComment(ctx context.Context, projectID string, mrIID int, refs *models.DiffRefs, filePath string, line int, lineType, body string) error {
	if refs != nil && refs.HeadSHA != "" {
		position := &models.NotePosition{
			BaseSHA:      refs.BaseSHA,
			StartSHA:     refs.StartSHA,
			HeadSHA:      refs.HeadSHA,
			PositionType: "text",
			NewPath:      filePath,
			OldPath:      filePath,
		}
		if lineType == "old" {
			position.OldLine = &line
		} else {
			position.NewLine = &line
		}

		_, err := c.raw.CreateDiscussion(ctx, projectID, mrIID, body, position)
		if err == nil {
			return nil
		}

		log.Debug().
			Err(err).
			Str("file", filePath).
			Int("line", line).
			Msg("Positioned comment rejected, falling back to plain note")
	}

	fallback := fmt.Sprintf("**%s:%d**\n\n%s", filePath, line, body)
	_, err := c.raw.CreateNote(ctx, projectID, mrIID, fallback)
	return err
}

// RelatedMergeRequests lists open MRs where the user is assignee or
// reviewer, deduplicated by (project, iid).
func (c *Client) RelatedMergeRequests(ctx context.Context) ([]models.MergeRequest, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	assigned, err := c.raw.ListMergeRequests(ctx, url.Values{
		"scope": {"assigned_to_me"},
		"state": {"opened"},
	})
	if err != nil {
		return nil, err
	}

	reviewing, err := c.raw.ListMergeRequests(ctx, url.Values{
		"reviewer_id": {strconv.Itoa(me.ID)},
		"state":       {"opened"},
		"scope":       {"all"},
	})
	if err != nil {
		return nil, err
	}

	merged := dedupeMergeRequests(append(assigned, reviewing...))
	c.enrichMergeRequests(ctx, merged)
	return merged, nil
}

// AuthoredMergeRequests lists open MRs created by the user
func (c *Client) AuthoredMergeRequests(ctx context.Context) ([]models.MergeRequest, error) {
	mrs, err := c.raw.ListMergeRequests(ctx, url.Values{
		"scope": {"created_by_me"},
		"state": {"opened"},
	})
	if err != nil {
		return nil, err
	}

	c.enrichMergeRequests(ctx, mrs)
	return mrs, nil
}

func dedupeMergeRequests(mrs []models.MergeRequest) []models.MergeRequest {
	type key struct {
		projectID int
		iid       int
	}

	seen := make(map[key]bool, len(mrs))
	result := make([]models.MergeRequest, 0, len(mrs))
	for _, mr := range mrs {
		k := key{mr.ProjectID, mr.IID}
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, mr)
	}
	return result
}

// enrichMergeRequests fills in project name/path and the caller's approval
// flag. Enrichment failures leave the field empty rather than failing the
// listing.
func (c *Client) enrichMergeRequests(ctx context.Context, mrs []models.MergeRequest) {
	for i := range mrs {
		mr := &mrs[i]

		name, path, ok := c.cache.get(mr.ProjectID)
		if !ok {
			project, err := c.GetProject(ctx, strconv.Itoa(mr.ProjectID))
			if err != nil {
				log.Debug().Err(err).Int("project_id", mr.ProjectID).Msg("Failed to resolve project for MR listing")
				continue
			}
			name, path = project.Name, project.PathWithNamespace
		}
		mr.ProjectName = name
		mr.ProjectPath = path

		state, err := c.raw.GetApprovalState(ctx, strconv.Itoa(mr.ProjectID), mr.IID)
		if err != nil {
			log.Debug().Err(err).Int("project_id", mr.ProjectID).Int("mr_iid", mr.IID).Msg("Failed to fetch approval state")
			continue
		}
		mr.ApprovedByCurrentUser = state.UserHasApproved
	}
}
