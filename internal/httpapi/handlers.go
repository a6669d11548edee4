package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storyreel/internal/editops"
	"storyreel/internal/locator"
	"storyreel/internal/logging"
	"storyreel/internal/preview"
	"storyreel/internal/services"
	"storyreel/internal/timeline"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Sessions int  `json:"sessions"`
	Drafts   bool `json:"drafts"`
	Exports  bool `json:"exports"`
}

type createSessionRequest struct {
	Timeline *timeline.Timeline `json:"timeline"`
	DraftID  string             `json:"draftId"`
}

type seekRequest struct {
	Seconds float64 `json:"seconds"`
}

type selectRequest struct {
	Index    int  `json:"index"`
	SkipSeek bool `json:"skipSeek"`
}

type bgmRequest struct {
	TemplateID string `json:"templateId"`
}

type bgmResponse struct {
	State    string `json:"state"`
	Template string `json:"template,omitempty"`
}

type reorderRequest struct {
	Order []int `json:"order"`
}

type selectionRequest struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type sourceDurationRequest struct {
	Index   int     `json:"index"`
	Seconds float64 `json:"seconds"`
}

type scriptRequest struct {
	Script string `json:"script"`
}

type saveRequest struct {
	DraftID string `json:"draftId"`
	Name    string `json:"name"`
}

type exportRequest struct {
	Name    string `json:"name"`
	DraftID string `json:"draftId"`
}

type importRequest struct {
	Name     string             `json:"name"`
	Timeline *timeline.Timeline `json:"timeline"`
}

type editResponse struct {
	Applied   bool             `json:"applied"`
	SceneIDs  []string         `json:"sceneIds,omitempty"`
	Reordered bool             `json:"reordered,omitempty"`
	Snapshot  preview.Snapshot `json:"snapshot"`
}

type windowView struct {
	SceneID         string  `json:"sceneId"`
	SceneIndex      int     `json:"sceneIndex"`
	PartIndex       int     `json:"partIndex"`
	Start           float64 `json:"start"`
	End             float64 `json:"end"`
	Ready           bool    `json:"ready"`
	URL             string  `json:"url,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrExternalService), errors.Is(err, services.ErrQuota), errors.Is(err, services.ErrTransient):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("api request failed",
			logging.String("path", c.FullPath()),
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_request_failed"),
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: message})
}

func (s *Server) withSession(next func(*gin.Context, *preview.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.deps.Manager.Get(c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		next(c, session)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Sessions: len(s.deps.Manager.List()),
		Drafts:   s.deps.Drafts != nil,
		Exports:  s.deps.Spool != nil,
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	ids := s.deps.Manager.List()
	snapshots := make([]preview.Snapshot, 0, len(ids))
	for _, id := range ids {
		session, err := s.deps.Manager.Get(id)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, session.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"sessions": snapshots})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	tl := req.Timeline
	if id := strings.TrimSpace(req.DraftID); id != "" {
		if s.deps.Drafts == nil {
			s.fail(c, services.Wrap(services.ErrConfiguration, "api", "create session", "draft store unavailable", nil))
			return
		}
		draft, err := s.deps.Drafts.Get(c.Request.Context(), id)
		if err != nil {
			s.fail(c, err)
			return
		}
		if draft == nil {
			s.fail(c, services.Wrap(services.ErrNotFound, "api", "create session", "draft "+id, nil))
			return
		}
		tl = draft.Timeline
	}
	if tl != nil {
		tl.Normalize(s.defaults)
	}

	hub := NewHub(s.logger)
	// Sessions outlive the request, so the manager's lifetime bounds them.
	session, err := s.deps.Manager.Create(context.WithoutCancel(c.Request.Context()), tl, preview.Collaborators{
		Narration: hub.Narration(),
		Music:     hub.Music(),
		Renderer:  hub,
		Session:   hub,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	hub.Bind(session.Bridge())
	s.mu.Lock()
	s.hubs[session.ID] = hub
	s.mu.Unlock()
	c.JSON(http.StatusCreated, session.Snapshot())
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.deps.Manager.Remove(id) {
		s.fail(c, services.Wrap(services.ErrNotFound, "api", "delete session", "session "+id, nil))
		return
	}
	s.mu.Lock()
	hub := s.hubs[id]
	delete(s.hubs, id)
	s.mu.Unlock()
	if hub != nil {
		hub.Close()
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCues(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.deps.Manager.Get(id); err != nil {
		s.fail(c, err)
		return
	}
	hub := s.hub(id)
	if hub == nil {
		s.fail(c, services.Wrap(services.ErrNotFound, "api", "cue stream", "no cue stream for session "+id, nil))
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	hub.Serve(c.Request.Context(), conn)
}

func (s *Server) handleSnapshot(c *gin.Context, session *preview.Session) {
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handlePayload(c *gin.Context, session *preview.Session) {
	c.JSON(http.StatusOK, session.Payload())
}

func (s *Server) handleWindows(c *gin.Context, session *preview.Session) {
	windows := session.Windows()
	views := make([]windowView, 0, len(windows))
	for _, w := range windows {
		view := windowView{
			SceneID:    w.SceneID,
			SceneIndex: w.SceneIndex,
			PartIndex:  w.PartIndex,
			Start:      w.Window.Start,
			End:        w.Window.End,
			Ready:      w.Ready(),
		}
		if w.Segment != nil {
			view.URL = w.Segment.URL
			view.DurationSeconds = w.Segment.DurationSeconds
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"windows": views})
}

func (s *Server) handlePlay(c *gin.Context, session *preview.Session) {
	session.Play()
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handlePause(c *gin.Context, session *preview.Session) {
	session.Pause()
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handleSeek(c *gin.Context, session *preview.Session) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	session.Seek(c.Request.Context(), req.Seconds)
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handleSelect(c *gin.Context, session *preview.Session) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	if !session.SelectScene(c.Request.Context(), req.Index, locator.SelectOptions{SkipSeek: req.SkipSeek}) {
		s.badRequest(c, "scene index out of range")
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handlePrepare(c *gin.Context, session *preview.Session) {
	if err := session.Prepare(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handleReset(c *gin.Context, session *preview.Session) {
	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, "invalid request body")
			return
		}
	}
	if req.Timeline != nil {
		req.Timeline.Normalize(s.defaults)
	}
	if err := session.Reset(req.Timeline); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handleConfirmBGM(c *gin.Context, session *preview.Session) {
	var req bgmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	state := session.ConfirmBGM(c.Request.Context(), strings.TrimSpace(req.TemplateID))
	c.JSON(http.StatusOK, bgmResponse{State: state.String(), Template: session.BGMTemplate()})
}

func (s *Server) handleClearBGM(c *gin.Context, session *preview.Session) {
	state := session.ClearBGM(c.Request.Context())
	c.JSON(http.StatusOK, bgmResponse{State: state.String()})
}

func (s *Server) respondEdit(c *gin.Context, session *preview.Session, change editops.Change) {
	c.JSON(http.StatusOK, editResponse{
		Applied:   change.Applied,
		SceneIDs:  change.SceneIDs,
		Reordered: change.Reordered,
		Snapshot:  session.Snapshot(),
	})
}

func (s *Server) handleReorder(c *gin.Context, session *preview.Session) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	s.respondEdit(c, session, session.ReorderScenes(req.Order))
}

func (s *Server) handleSelectionRange(c *gin.Context, session *preview.Session) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	s.respondEdit(c, session, session.ApplySelectionRange(req.Index, req.Start, req.End))
}

func (s *Server) handleSourceDuration(c *gin.Context, session *preview.Session) {
	var req sourceDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	s.respondEdit(c, session, session.ApplyOriginalVideoDuration(req.Index, req.Seconds))
}

func (s *Server) handleScript(c *gin.Context, session *preview.Session) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	s.respondEdit(c, session, session.UpdateScript(c.Param("sceneId"), req.Script))
}

func (s *Server) handleRemoveScene(c *gin.Context, session *preview.Session) {
	s.respondEdit(c, session, session.RemoveScene(c.Param("sceneId")))
}
