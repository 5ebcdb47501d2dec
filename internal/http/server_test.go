package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/logging"
	"github.com/fyrsmithlabs/pdfqa/internal/orchestrator"
	"github.com/fyrsmithlabs/pdfqa/internal/pdf"
)

type fakeRunner struct {
	result    *orchestrator.BatchResult
	err       error
	gotPath   string
	gotQs     []string
	requestID string
}

func (f *fakeRunner) Run(ctx context.Context, pdfPath string, questions []string) (*orchestrator.BatchResult, error) {
	f.gotPath = pdfPath
	f.gotQs = questions
	f.requestID = logging.RequestIDFromContext(ctx)
	return f.result, f.err
}

// panicOnceRunner panics on its first call and succeeds afterwards.
type panicOnceRunner struct {
	calls  int
	result *orchestrator.BatchResult
}

func (p *panicOnceRunner) Run(context.Context, string, []string) (*orchestrator.BatchResult, error) {
	p.calls++
	if p.calls == 1 {
		panic("generator exploded")
	}
	return p.result, nil
}

func setupTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	s, err := NewServer(runner, zap.NewNop(), &Config{Host: "localhost", Port: 9191, Version: "test", Variant: "hybrid"})
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s, err := NewServer(&fakeRunner{}, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", s.config.Host)
		assert.Equal(t, 9191, s.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&fakeRunner{}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when runner is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "runner cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(setupTestServer(t, &fakeRunner{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStatus(t *testing.T) {
	rec := doRequest(setupTestServer(t, &fakeRunner{}), http.MethodGet, "/api/v1/status", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusResponse{Status: "ok", Version: "test", Variant: "hybrid"}, resp)
}

func TestHandleAsk(t *testing.T) {
	t.Run("returns ordered result mapping", func(t *testing.T) {
		result := orchestrator.NewBatchResult()
		result.Set("Q2?", orchestrator.Answer{Answer: "two", Sources: []string{"Page 3"}})
		result.Set("Q1?", orchestrator.Answer{Answer: orchestrator.SentinelAnswer})
		runner := &fakeRunner{result: result}
		s := setupTestServer(t, runner)

		rec := doRequest(s, http.MethodPost, "/api/v1/ask", `{"pdf_path": "data/handbook.pdf", "questions": ["Q2?", "Q1?"]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "data/handbook.pdf", runner.gotPath)
		assert.Equal(t, []string{"Q2?", "Q1?"}, runner.gotQs)
		assert.NotEmpty(t, runner.requestID)
		assert.True(t, strings.HasPrefix(rec.Body.String(), `{"Q2?":{"answer":"two","sources":["Page 3"]},"Q1?":`))

		var got orchestrator.BatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		a, ok := got.Get("Q1?")
		require.True(t, ok)
		assert.True(t, a.Failed())
	})

	t.Run("fatal batch is unprocessable", func(t *testing.T) {
		runner := &fakeRunner{err: &orchestrator.StageError{Stage: orchestrator.StagePDFLoaded, Err: pdf.ErrNoPages}}
		rec := doRequest(setupTestServer(t, runner), http.MethodPost, "/api/v1/ask", `{"pdf_path": "missing.pdf", "questions": ["Q?"]}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "pdf_loaded")
	})

	t.Run("unexpected error is internal", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("boom")}
		rec := doRequest(setupTestServer(t, runner), http.MethodPost, "/api/v1/ask", `{"pdf_path": "a.pdf", "questions": ["Q?"]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleAsk_RecoversFromRunnerPanic(t *testing.T) {
	result := orchestrator.NewBatchResult()
	result.Set("Who is the CEO?", orchestrator.Answer{Answer: "Jane Doe"})
	runner := &panicOnceRunner{result: result}
	s := setupTestServer(t, runner)
	body := `{"pdf_path":"handbook.pdf","questions":["Who is the CEO?"]}`

	first := doRequest(s, http.MethodPost, "/api/v1/ask", body)
	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.False(t, s.busy.Load(), "busy flag must clear after a panic")

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- doRequest(s, http.MethodPost, "/api/v1/ask", body) }()
	select {
	case second := <-done:
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Contains(t, second.Body.String(), "Jane Doe")
	case <-time.After(5 * time.Second):
		t.Fatal("second request blocked on the batch lock")
	}
	assert.Equal(t, 2, runner.calls)
}

func TestHandleAsk_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"pdf_path": `, "invalid request body"},
		{"missing path", `{"questions": ["Q?"]}`, "pdf_path is required"},
		{"no questions", `{"pdf_path": "a.pdf", "questions": []}`, "questions must not be empty"},
		{"blank question", `{"pdf_path": "a.pdf", "questions": ["Q?", "  "]}`, "questions[1] is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			rec := doRequest(setupTestServer(t, runner), http.MethodPost, "/api/v1/ask", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["error"])
			assert.Empty(t, runner.gotPath)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(setupTestServer(t, &fakeRunner{}), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
