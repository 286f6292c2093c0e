package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"variatio/domain/core"
	"variatio/domain/metric"
	"variatio/internal/errors"
	"variatio/ports"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) SaveSession(ctx context.Context, session ports.SessionRecord, metrics []metric.Metric) error {
	return m.Called(ctx, session, metrics).Error(0)
}

func (m *mockRepository) GetSession(ctx context.Context, id core.SessionID) (*ports.SessionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.SessionRecord), args.Error(1)
}

func (m *mockRepository) ListBySession(ctx context.Context, id core.SessionID) ([]metric.Metric, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]metric.Metric), args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func storedSession(t *testing.T) (*Server, core.SessionID) {
	t.Helper()
	id := core.NewSessionID()
	repo := new(mockRepository)
	repo.On("GetSession", mock.Anything, id).Return(&ports.SessionRecord{
		ID:            id,
		ControlArm:    "A",
		TreatmentArms: []string{"B"},
		Mode:          "linear_cuped",
		Correction:    "none",
	}, nil)
	repo.On("ListBySession", mock.Anything, id).Return([]metric.Metric{{
		ID:         core.NewMetricID(),
		Definition: metric.Count("purchase"),
		Result: metric.NewResult(metric.ResultInput{
			ControlArm:    "A",
			TreatmentArms: []string{"B"},
			Means:         map[string]float64{"A": 2, "B": 3},
			PValues:       map[string]float64{"B": 0.004},
			Method:        metric.MethodPureCupedTTest,
		}),
	}}, nil)

	s, err := NewServer(repo, 0.05, nil)
	require.NoError(t, err)
	return s, id
}

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_SessionPage(t *testing.T) {
	s, id := storedSession(t)
	rec := serve(s, "/sessions/"+id.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.Contains(t, body, "<th>A (control)</th>")
	assert.Contains(t, body, "Count of &#39;purchase&#39; events per user.")
	assert.Contains(t, body, `class="strong_positive"`)
	assert.Contains(t, body, "3.00 (&#43;50.0%), p=0.0040")
}

func TestServer_MarkdownAndHTML(t *testing.T) {
	s, id := storedSession(t)

	md := serve(s, "/sessions/"+id.String()+"/report.md")
	require.Equal(t, http.StatusOK, md.Code)
	assert.Contains(t, md.Body.String(), "# Experiment report")
	assert.Contains(t, md.Body.String(), "3.00 (+50.0%), p=0.0040, strong_positive")

	page := serve(s, "/sessions/"+id.String()+"/report.html")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "<table>")
}

func TestServer_Errors(t *testing.T) {
	missing := core.NewSessionID()
	broken := core.NewSessionID()
	repo := new(mockRepository)
	repo.On("GetSession", mock.Anything, missing).Return(nil, errors.NotFound("session"))
	repo.On("GetSession", mock.Anything, broken).Return(nil, errors.DatabaseError("query failed", context.DeadlineExceeded))

	s, err := NewServer(repo, 0.05, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, serve(s, "/sessions/nope").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, "/sessions/"+missing.String()).Code)
	assert.Equal(t, http.StatusInternalServerError, serve(s, "/sessions/"+broken.String()+"/report.md").Code)
	assert.Equal(t, http.StatusOK, serve(s, "/healthz").Code)
}
