package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"careerprep/internal/app"
	"careerprep/internal/coverletter"
	"careerprep/internal/domain"
	"careerprep/internal/infra/memory"
	"careerprep/internal/render"
	"careerprep/internal/stats"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct {
	markdown string
	err      error
}

func (f *fakeExporter) Export(_ context.Context, id, markdown string) (domain.Document, error) {
	f.markdown = markdown
	if f.err != nil {
		return domain.Document{}, f.err
	}
	return domain.Document{Filename: id + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}, nil
}

type apiFixture struct {
	server   *httptest.Server
	results  *memory.AssessmentRepository
	exporter *fakeExporter
}

func newAPIServer(t *testing.T) apiFixture {
	t.Helper()
	results := memory.NewAssessmentRepository()
	quiz := app.NewQuizService(memory.NewSessionStore(), memory.NewQuestionBank(sampleQuiz(), 2), results, nil)
	exporter := &fakeExporter{}
	letters := app.NewCoverLetterService(
		memory.NewCoverLetterRepository(),
		memory.NewDraftStore(),
		render.NewMarkdown(),
		nil,
		nil,
		app.WithExporter(exporter),
	)

	mux := http.NewServeMux()
	NewAPIHandler(quiz, letters, nil).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return apiFixture{server: server, results: results, exporter: exporter}
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIServer(t)
	ctx := context.Background()
	questions := sampleQuiz()
	_, err := f.results.SaveResult(ctx, "u1", domain.QuizResult{Score: 80, Questions: questions, Answers: []string{"4", "go"}})
	require.NoError(t, err)
	_, err = f.results.SaveResult(ctx, "u1", domain.QuizResult{Score: 60, Questions: questions, Answers: []string{"3", ""}})
	require.NoError(t, err)

	resp := do(t, http.MethodGet, f.server.URL+"/users/u1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[stats.Summary](t, resp)
	require.Equal(t, 70.0, summary.AverageScore)
	require.Equal(t, 4, summary.TotalQuestions)
	require.Equal(t, 60.0, summary.LatestScore)

	resp = do(t, http.MethodGet, f.server.URL+"/users/nobody/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 0.0, decodeBody[stats.Summary](t, resp).AverageScore)

	resp = do(t, http.MethodGet, f.server.URL+"/users/u1/assessments", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decodeBody[[]domain.AssessmentRecord](t, resp), 2)
}

func TestCoverLetterLifecycle(t *testing.T) {
	f := newAPIServer(t)
	base := f.server.URL + "/cover-letters"

	resp := do(t, http.MethodPost, base, map[string]string{"userId": "u1", "content": "# Dear team"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	letter := decodeBody[domain.CoverLetter](t, resp)
	require.NotEmpty(t, letter.ID)

	resp = do(t, http.MethodGet, base+"/"+letter.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	draft := decodeBody[coverletter.Draft](t, resp)
	require.Equal(t, coverletter.ModePreview, draft.Mode)
	require.Equal(t, "# Dear team", draft.Content)

	resp = do(t, http.MethodPut, base+"/"+letter.ID+"/mode", map[string]string{"mode": "edit"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, coverletter.ModeEdit, decodeBody[coverletter.Draft](t, resp).Mode)

	resp = do(t, http.MethodPut, base+"/"+letter.ID+"/draft", map[string]string{"content": "# Hello\n\nI am **keen**."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	draft = decodeBody[coverletter.Draft](t, resp)
	require.True(t, draft.Editing)
	require.Equal(t, coverletter.ModeEdit, draft.Mode)

	resp = do(t, http.MethodGet, base+"/"+letter.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), "<strong>keen</strong>")

	resp = do(t, http.MethodPost, base+"/"+letter.ID+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "# Hello\n\nI am **keen**.", decodeBody[domain.CoverLetter](t, resp).Content)

	resp = do(t, http.MethodGet, base+"/"+letter.ID, nil)
	require.False(t, decodeBody[coverletter.Draft](t, resp).Editing)

	resp = do(t, http.MethodGet, base+"/"+letter.ID+"/pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	require.True(t, strings.Contains(resp.Header.Get("Content-Disposition"), letter.ID+".pdf"))
	require.Equal(t, "# Hello\n\nI am **keen**.", f.exporter.markdown)
}

func TestCoverLetterErrors(t *testing.T) {
	f := newAPIServer(t)
	base := f.server.URL + "/cover-letters"

	resp := do(t, http.MethodGet, base+"/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, base, map[string]string{"content": "no owner"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, base, map[string]string{"userId": "u1", "content": "hi"})
	letter := decodeBody[domain.CoverLetter](t, resp)

	resp = do(t, http.MethodPut, base+"/"+letter.ID+"/mode", map[string]string{"mode": "fullscreen"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.exporter.err = errors.New("chrome crashed")
	resp = do(t, http.MethodGet, base+"/"+letter.ID+"/pdf", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusNotFound, statusFor(domain.ErrCoverLetterNotFound))
	require.Equal(t, http.StatusConflict, statusFor(domain.ErrSessionNotActive))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(errors.Join(errors.New("db"), domain.ErrPersistence)))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
