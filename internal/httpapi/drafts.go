package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storyreel/internal/draftstore"
	"storyreel/internal/export"
	"storyreel/internal/logging"
	"storyreel/internal/notifications"
	"storyreel/internal/preview"
	"storyreel/internal/services"
)

func (s *Server) drafts(c *gin.Context) (*draftstore.Store, bool) {
	if s.deps.Drafts == nil {
		s.fail(c, services.Wrap(services.ErrConfiguration, "api", "drafts", "draft store unavailable", nil))
		return nil, false
	}
	return s.deps.Drafts, true
}

func (s *Server) spool(c *gin.Context) (*export.Spool, bool) {
	if s.deps.Spool == nil {
		s.fail(c, services.Wrap(services.ErrConfiguration, "api", "exports", "export spool unavailable", nil))
		return nil, false
	}
	return s.deps.Spool, true
}

func (s *Server) handleListDrafts(c *gin.Context) {
	store, ok := s.drafts(c)
	if !ok {
		return
	}
	drafts, err := store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

func (s *Server) handleImportDraft(c *gin.Context) {
	store, ok := s.drafts(c)
	if !ok {
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	if req.Timeline == nil {
		s.badRequest(c, "timeline required")
		return
	}
	req.Timeline.Normalize(s.defaults)
	draft := &draftstore.Draft{Name: req.Name, Timeline: req.Timeline}
	if err := store.Save(c.Request.Context(), draft); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

func (s *Server) handleGetDraft(c *gin.Context) {
	store, ok := s.drafts(c)
	if !ok {
		return
	}
	id := c.Param("id")
	draft, err := store.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if draft == nil {
		s.fail(c, services.Wrap(services.ErrNotFound, "api", "get draft", "draft "+id, nil))
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) handleDeleteDraft(c *gin.Context) {
	store, ok := s.drafts(c)
	if !ok {
		return
	}
	id := c.Param("id")
	removed, err := store.Delete(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !removed {
		s.fail(c, services.Wrap(services.ErrNotFound, "api", "delete draft", "draft "+id, nil))
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSaveDraft stores the session's current timeline, updating the draft
// named by draftId when given.
func (s *Server) handleSaveDraft(c *gin.Context, session *preview.Session) {
	store, ok := s.drafts(c)
	if !ok {
		return
	}
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	ctx := c.Request.Context()
	draft := &draftstore.Draft{ID: strings.TrimSpace(req.DraftID), Name: strings.TrimSpace(req.Name)}
	if draft.ID != "" {
		existing, err := store.Get(ctx, draft.ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if existing != nil {
			draft.CreatedAt = existing.CreatedAt
			if draft.Name == "" {
				draft.Name = existing.Name
			}
		}
	}
	draft.Timeline = session.Timeline()
	if err := store.Save(ctx, draft); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) handleExport(c *gin.Context, session *preview.Session) {
	spool, ok := s.spool(c)
	if !ok {
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	manifest := export.NewManifest(strings.TrimSpace(req.Name), strings.TrimSpace(req.DraftID),
		session.Timeline(), session.Windows(), session.BGMTemplate())
	queued, err := spool.Submit(c.Request.Context(), manifest)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.Publish(c.Request.Context(), notifications.EventExportQueued, queued.Announcement()); err != nil {
			s.logger.Warn("export notification failed",
				logging.String("export_id", queued.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String(logging.FieldImpact, "export is queued but nobody was told"),
			)
		}
	}
	c.JSON(http.StatusAccepted, queued)
}

func (s *Server) handleListExports(c *gin.Context) {
	spool, ok := s.spool(c)
	if !ok {
		return
	}
	pending, err := spool.Pending(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": pending})
}

func (s *Server) handleGetExport(c *gin.Context) {
	spool, ok := s.spool(c)
	if !ok {
		return
	}
	manifest, err := spool.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, manifest)
}

func (s *Server) handleDeleteExport(c *gin.Context) {
	spool, ok := s.spool(c)
	if !ok {
		return
	}
	id := c.Param("id")
	removed, err := spool.Remove(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !removed {
		s.fail(c, services.Wrap(services.ErrNotFound, "api", "delete export", "export "+id, nil))
		return
	}
	c.Status(http.StatusNoContent)
}
