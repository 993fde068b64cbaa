package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// gitlabConnect validates the stored token by fetching the account it
// belongs to.
func (s *Server) gitlabConnect(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	user, err := client.CurrentUser(c.Request().Context())
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"connected": true,
		"user":      user,
	})
}

func (s *Server) listProjects(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	projects, err := client.ListProjects(c.Request().Context(), c.QueryParam("search"), page, perPage)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) getProject(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	project, err := client.GetProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, project)
}

func (s *Server) listProjectMergeRequests(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	state := c.QueryParam("state")
	if state == "" {
		state = "opened"
	}

	mrs, err := client.ListProjectMergeRequests(c.Request().Context(), c.Param("id"), state)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, mrs)
}

func (s *Server) relatedMergeRequests(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	mrs, err := client.RelatedMergeRequests(c.Request().Context())
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, mrs)
}

func (s *Server) authoredMergeRequests(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	mrs, err := client.AuthoredMergeRequests(c.Request().Context())
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, mrs)
}

func (s *Server) getMergeRequest(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	mr, refs, err := client.GetMergeRequest(c.Request().Context(), c.Param("id"), iid)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"merge_request": mr,
		"diff_refs":     refs,
	})
}

func (s *Server) getMergeRequestDiffs(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	diffs, err := client.GetMergeRequestChanges(c.Request().Context(), c.Param("id"), iid)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, diffs)
}

func (s *Server) listNotes(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	notes, err := client.ListNotes(c.Request().Context(), c.Param("id"), iid)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, notes)
}

type noteRequest struct {
	Body string `json:"body"`
}

func (s *Server) createNote(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil || req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "body is required")
	}

	note, err := client.CreateNote(c.Request().Context(), c.Param("id"), iid, req.Body)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusCreated, note)
}

func (s *Server) updateNote(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}
	noteID, err := strconv.Atoi(c.Param("note_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid note id")
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil || req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "body is required")
	}

	note, err := client.UpdateNote(c.Request().Context(), c.Param("id"), iid, noteID, req.Body)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, note)
}

func (s *Server) deleteNote(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}
	noteID, err := strconv.Atoi(c.Param("note_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid note id")
	}

	if err := client.DeleteNote(c.Request().Context(), c.Param("id"), iid, noteID); err != nil {
		return gitlabError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listDiscussions(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	discussions, err := client.ListDiscussions(c.Request().Context(), c.Param("id"), iid)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, discussions)
}

type discussionRequest struct {
	Body     string `json:"body"`
	FilePath string `json:"file_path,omitempty"`
	Line     int    `json:"line,omitempty"`
	LineType string `json:"line_type,omitempty"`
}

// createDiscussion posts a comment. With file_path+line it becomes a
// positioned discussion on the diff; GitLab rejections of the position
// fall back to a plain note inside the client.
func (s *Server) createDiscussion(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	var req discussionRequest
	if err := c.Bind(&req); err != nil || req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "body is required")
	}

	ctx := c.Request().Context()
	projectID := c.Param("id")

	if req.FilePath == "" || req.Line <= 0 {
		discussion, err := client.CreateDiscussion(ctx, projectID, iid, req.Body, nil)
		if err != nil {
			return gitlabError(err)
		}
		return c.JSON(http.StatusCreated, discussion)
	}

	lineType := req.LineType
	if lineType == "" {
		lineType = "new"
	}

	_, refs, err := client.GetMergeRequest(ctx, projectID, iid)
	if err != nil {
		return gitlabError(err)
	}

	if err := client.PostLineComment(ctx, projectID, iid, refs, req.FilePath, req.Line, lineType, req.Body); err != nil {
		return gitlabError(err)
	}

	log.Debug().
		Str("file", req.FilePath).
		Int("line", req.Line).
		Msg("Posted positioned discussion")
	return c.JSON(http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) replyToDiscussion(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil || req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "body is required")
	}

	note, err := client.ReplyToDiscussion(c.Request().Context(), c.Param("id"), iid, c.Param("discussion_id"), req.Body)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusCreated, note)
}

func (s *Server) getApprovalState(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	state, err := client.GetApprovalState(c.Request().Context(), c.Param("id"), iid)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) approveMergeRequest(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	if err := client.Approve(c.Request().Context(), c.Param("id"), iid); err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) unapproveMergeRequest(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	if err := client.Unapprove(c.Request().Context(), c.Param("id"), iid); err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unapproved"})
}

type mergeRequestBody struct {
	Squash             bool `json:"squash"`
	RemoveSourceBranch bool `json:"remove_source_branch"`
}

func (s *Server) mergeMergeRequest(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}
	iid, err := mrIID(c)
	if err != nil {
		return err
	}

	var req mergeRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	mr, err := client.Merge(c.Request().Context(), c.Param("id"), iid, req.Squash, req.RemoveSourceBranch)
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, mr)
}

func (s *Server) listUsers(c echo.Context) error {
	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	users, err := client.ListUsers(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		return gitlabError(err)
	}
	return c.JSON(http.StatusOK, users)
}

func mrIID(c echo.Context) (int, error) {
	iid, err := strconv.Atoi(c.Param("iid"))
	if err != nil || iid <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid merge request iid")
	}
	return iid, nil
}
