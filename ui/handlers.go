package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"variatio/adapters/report"
	"variatio/domain/core"
	"variatio/domain/metric"
	"variatio/internal/errors"
	"variatio/ports"
)

type sessionPage struct {
	Session ports.SessionRecord
	Alpha   float64
	Rows    []report.Row
}

func (s *Server) handleSession(c *gin.Context) {
	record, metrics, ok := s.loadSession(c)
	if !ok {
		return
	}
	s.renderTemplate(c, "session.html", sessionPage{
		Session: *record,
		Alpha:   s.alpha,
		Rows:    s.renderer.Rows(metrics),
	})
}

func (s *Server) handleMarkdown(c *gin.Context) {
	_, metrics, ok := s.loadSession(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(s.renderer.Markdown(metrics)))
}

func (s *Server) handleHTML(c *gin.Context) {
	_, metrics, ok := s.loadSession(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.renderer.HTML(metrics))
}

func (s *Server) loadSession(c *gin.Context) (*ports.SessionRecord, []metric.Metric, bool) {
	id, err := core.ParseSessionID(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}

	record, err := s.repo.GetSession(c.Request.Context(), id)
	if err != nil {
		s.abort(c, err)
		return nil, nil, false
	}
	metrics, err := s.repo.ListBySession(c.Request.Context(), id)
	if err != nil {
		s.abort(c, err)
		return nil, nil, false
	}
	return record, metrics, true
}

func (s *Server) abort(c *gin.Context, err error) {
	if errors.GetCode(err) == errors.CodeNotFound {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("loading session failed", zap.String("session", c.Param("id")), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
}
