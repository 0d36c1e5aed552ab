package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/i18n"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"github.com/xaenox/support-bot/internal/ticket"
)

// Notifier is the slice of the messaging transport the admin surface
// needs: pushing text to a user's chat.
type Notifier interface {
	NotifyUser(chatID int64, text string) error
}

// Server exposes the operator actions over HTTP: list tickets, resolve
// one, send a comment to the ticket's user. It is just another caller
// of the lifecycle engine; the trust boundary is network access to the
// listen address.
type Server struct {
	engine   *ticket.Engine
	notifier Notifier
	catalog  *i18n.Catalog
	logger   *zap.Logger
}

func NewServer(engine *ticket.Engine, notifier Notifier, catalog *i18n.Catalog, logger *zap.Logger) *Server {
	return &Server{
		engine:   engine,
		notifier: notifier,
		catalog:  catalog,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/tickets", s.list)
	r.POST("/tickets/:id/resolve", s.resolve)
	r.POST("/tickets/:id/comment", s.comment)
	return r
}

func (s *Server) Run(addr string) error {
	s.logger.Info("Admin server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) list(c *gin.Context) {
	tickets, err := s.engine.List(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list tickets", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(tickets), "tickets": tickets})
}

func (s *Server) ticketID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return 0, false
	}
	return id, true
}

func (s *Server) resolve(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}

	t, err := s.engine.ResolveByOperator(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		s.logger.Error("Failed to resolve ticket", zap.Error(err), zap.Int64("ticket_id", id))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	text := s.catalog.T(t.Lang, "ticket_resolved_by_admin", "id", strconv.FormatInt(t.ID, 10))
	if err := s.notifier.NotifyUser(t.UserID, text); err != nil {
		// The resolve already happened; the missed notification is
		// logged, not surfaced as a failure.
		s.logger.Error("Failed to notify user of resolution",
			zap.Error(err),
			zap.Int64("ticket_id", t.ID))
	}
	c.JSON(http.StatusOK, t)
}

type commentRequest struct {
	Text string `json:"text" form:"text" binding:"required"`
}

func (s *Server) comment(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	t, err := s.engine.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		s.logger.Error("Failed to load ticket", zap.Error(err), zap.Int64("ticket_id", id))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	text := s.catalog.T(t.Lang, "operator_reply_prefix") + " " + req.Text
	if err := s.notifier.NotifyUser(t.UserID, text); err != nil {
		s.logger.Error("Failed to deliver admin comment",
			zap.Error(err),
			zap.Int64("ticket_id", t.ID))
		c.JSON(http.StatusBadGateway, gin.H{"error": "delivery failed"})
		return
	}

	// Resolved tickets stay out of the update-time index; touching one
	// here would re-insert it.
	if t.Status != models.StatusResolved {
		if err := s.engine.Touch(c.Request.Context(), t.ID); err != nil {
			s.logger.Error("Failed to touch ticket after comment",
				zap.Error(err),
				zap.Int64("ticket_id", t.ID))
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}
