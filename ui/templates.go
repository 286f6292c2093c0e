package ui

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"variatio/adapters/report"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"mean":    report.FormatMean,
		"reldiff": report.FormatDiff,
		"pvalue":  report.FormatPValue,
	}
	return template.New("ui").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
}

// renderTemplate executes a template into a buffer so a failure never
// leaves a half-written page
func (s *Server) renderTemplate(c *gin.Context, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template rendering failed", zap.String("template", name), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "template rendering failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
