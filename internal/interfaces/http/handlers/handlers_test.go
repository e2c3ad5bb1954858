package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/application/knowledge"
	"github.com/turtacn/LegalLens/internal/application/pipeline"
	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeClassifier struct{ gotEmb bool }

func (f *fakeClassifier) Classify(_ context.Context, text string, useEmb bool) legal.ClassificationResult {
	f.gotEmb = useEmb
	return legal.ClassificationResult{Domain: "Criminal", PrimaryIssue: "theft", TextLength: len(text), Method: legal.MethodKeywords}
}

type fakeSections struct{}

func (fakeSections) MapSections(domain, primary string, _ []string) legal.SectionMapping {
	return legal.SectionMapping{Domain: domain, PrimaryIssue: primary}
}

func (fakeSections) SectionDetails(act, number string) (legal.SectionRecord, error) {
	if act != "IPC" {
		return legal.SectionRecord{}, errors.Newf(errors.ErrCodeActUnknown, "unknown act %q", act)
	}
	return legal.SectionRecord{Act: act, Issue: "theft", Section: legal.Section{Section: number, Title: "Punishment for theft"}}, nil
}

func (fakeSections) Search(q string) []legal.SectionRecord {
	return []legal.SectionRecord{{Act: "IPC", Section: legal.Section{Section: "379", Title: q}}}
}

type fakeEvidence struct{}

func (fakeEvidence) Extract(_ context.Context, _ string) legal.EvidenceBundle {
	return legal.EvidenceBundle{Witnesses: []legal.Witness{{Name: "Ramesh"}}}
}

type fakeAdvisory struct{}

func (fakeAdvisory) Classify(_ context.Context, _ string) legal.AdvisoryClassification {
	return legal.AdvisoryClassification{Domain: "Property", Confidence: 0.8}
}

type fakeKnowledge struct {
	enqueueErr error
	queued     bool
	gotTopK    int
	sources    []*legal.KnowledgeSource
}

func (f *fakeKnowledge) Enqueue(_ context.Context, req knowledge.IngestRequest) (*knowledge.IngestResult, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	return &knowledge.IngestResult{Success: true, Domain: req.Domain, Queued: f.queued}, nil
}

func (f *fakeKnowledge) Retrieve(_ context.Context, domain, query string, topK int) []legal.RetrievedChunk {
	f.gotTopK = topK
	return []legal.RetrievedChunk{{Text: query + " in " + domain}}
}

func (f *fakeKnowledge) Stats(context.Context) map[string]knowledge.DomainStats {
	return map[string]knowledge.DomainStats{
		"Tax": {CollectionStats: retrieval.CollectionStats{Collection: "tax_regulations", DocumentCount: 4}, Sources: 2},
	}
}

func (f *fakeKnowledge) Sources(context.Context, string, int, int) ([]*legal.KnowledgeSource, error) {
	return f.sources, nil
}

type fakeCases struct {
	got    pipeline.CaseRequest
	status legal.PipelineStatus
}

func (f *fakeCases) Analyze(_ context.Context, req pipeline.CaseRequest) *legal.PipelineResult {
	f.got = req
	res := &legal.PipelineResult{Status: f.status, CaseTitle: req.CaseTitle, CompletedAt: time.Now()}
	if f.status == legal.StatusError {
		res.Error = "[PIPE_003] failed to write markdown report"
	}
	return res
}

type fakeAdvisories struct{ got pipeline.AdvisoryRequest }

func (f *fakeAdvisories) Analyze(_ context.Context, req pipeline.AdvisoryRequest) *legal.PipelineResult {
	f.got = req
	return &legal.PipelineResult{Status: legal.StatusSuccess, CaseType: "advisory"}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func analysisRouter(cls *fakeClassifier) *gin.Engine {
	h := NewAnalysisHandler(cls, fakeSections{}, fakeEvidence{}, fakeAdvisory{})
	r := gin.New()
	r.POST("/classify", h.Classify)
	r.POST("/sections/map", h.MapSections)
	r.GET("/sections/search", h.SearchSections)
	r.GET("/sections/:act/:number", h.SectionDetails)
	r.POST("/evidence", h.Evidence)
	r.POST("/advisory/classify", h.ClassifyAdvisory)
	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Analysis
// ─────────────────────────────────────────────────────────────────────────────

func TestAnalysisHandler_Classify(t *testing.T) {
	cls := &fakeClassifier{}
	r := analysisRouter(cls)

	rec, env := do(t, r, http.MethodPost, "/classify", ClassifyRequest{Text: "my phone was stolen", UseEmbeddings: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.True(t, cls.gotEmb)
	var got legal.ClassificationResult
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "theft", got.PrimaryIssue)

	rec, env = do(t, r, http.MethodPost, "/classify", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "COMMON_002", env.Error.Code)
}

func TestAnalysisHandler_Sections(t *testing.T) {
	r := analysisRouter(&fakeClassifier{})

	rec, env := do(t, r, http.MethodPost, "/sections/map", MapSectionsRequest{Domain: "Criminal", PrimaryIssue: "theft"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"primary_issue":"theft"`)

	rec, env = do(t, r, http.MethodGet, "/sections/search?q=theft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"count":1`)

	rec, _ = do(t, r, http.MethodGet, "/sections/search?q=%20", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, r, http.MethodGet, "/sections/IPC/379", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Punishment for theft")

	rec, env = do(t, r, http.MethodGet, "/sections/XYZ/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, `unknown act "XYZ"`, env.Error.Message)
}

func TestAnalysisHandler_EvidenceAndAdvisory(t *testing.T) {
	r := analysisRouter(&fakeClassifier{})

	rec, env := do(t, r, http.MethodPost, "/evidence", TextRequest{Text: "Ramesh saw it"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Ramesh")

	rec, env = do(t, r, http.MethodPost, "/advisory/classify", TextRequest{Text: "land dispute"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"domain":"Property"`)
}

// ─────────────────────────────────────────────────────────────────────────────
// Knowledge
// ─────────────────────────────────────────────────────────────────────────────

func knowledgeRouter(svc KnowledgeService) *gin.Engine {
	h := NewKnowledgeHandler(svc)
	r := gin.New()
	r.POST("/retrieve", h.Retrieve)
	r.POST("/ingest", h.Ingest)
	r.GET("/stats", h.Stats)
	r.GET("/sources", h.Sources)
	return r
}

func TestKnowledgeHandler_Retrieve(t *testing.T) {
	svc := &fakeKnowledge{}
	r := knowledgeRouter(svc)

	rec, env := do(t, r, http.MethodPost, "/retrieve", RetrieveRequest{Domain: "Tax", Query: "gst refund", TopK: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.gotTopK)
	assert.Contains(t, string(env.Data), "gst refund in Tax")
}

func TestKnowledgeHandler_Ingest(t *testing.T) {
	t.Run("synchronous", func(t *testing.T) {
		rec, env := do(t, knowledgeRouter(&fakeKnowledge{}), http.MethodPost, "/ingest",
			knowledge.IngestRequest{Domain: "Tax", Text: "GST is levied on supply."})
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, env.Success)
	})
	t.Run("queued", func(t *testing.T) {
		rec, _ := do(t, knowledgeRouter(&fakeKnowledge{queued: true}), http.MethodPost, "/ingest",
			knowledge.IngestRequest{Domain: "Tax", Text: "GST is levied on supply."})
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
	t.Run("unknown domain", func(t *testing.T) {
		svc := &fakeKnowledge{enqueueErr: errors.New(errors.ErrCodeUnknownDomain, "unknown domain Space")}
		rec, env := do(t, knowledgeRouter(svc), http.MethodPost, "/ingest",
			knowledge.IngestRequest{Domain: "Space", Text: "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unknown domain Space", env.Error.Message)
	})
	t.Run("backend failure is masked", func(t *testing.T) {
		svc := &fakeKnowledge{enqueueErr: errors.New(errors.ErrCodeVectorStore, "milvus: connection refused")}
		rec, env := do(t, knowledgeRouter(svc), http.MethodPost, "/ingest",
			knowledge.IngestRequest{Domain: "Tax", Text: "x"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotNil(t, env.Error)
		assert.NotContains(t, env.Error.Message, "connection refused")
	})
}

func TestKnowledgeHandler_StatsAndSources(t *testing.T) {
	r := knowledgeRouter(&fakeKnowledge{})

	rec, env := do(t, r, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"tax_regulations"`)
	assert.Contains(t, string(env.Data), `"sources":2`)

	rec, env = do(t, r, http.MethodGet, "/sources?limit=9999", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(env.Data))
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipelines
// ─────────────────────────────────────────────────────────────────────────────

func TestPipelineHandler_CaseJSON(t *testing.T) {
	cases := &fakeCases{status: legal.StatusSuccess}
	h := NewPipelineHandler(cases, &fakeAdvisories{}, 0)
	r := gin.New()
	r.POST("/cases", h.AnalyzeCase)

	no := false
	rec, env := do(t, r, http.MethodPost, "/cases", CaseJSON{CaseTitle: "Theft", StatementText: "stolen", Clean: &no})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "stolen", cases.got.StatementText)
	assert.False(t, cases.got.Translate)
	assert.False(t, cases.got.Clean)

	yes := true
	_, _ = do(t, r, http.MethodPost, "/cases", CaseJSON{StatementText: "stolen", Translate: &yes})
	assert.True(t, cases.got.Translate)
	assert.True(t, cases.got.Clean)

	cases.status = legal.StatusError
	rec, env = do(t, r, http.MethodPost, "/cases", CaseJSON{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "failed to write")
}

func TestPipelineHandler_CaseMultipart(t *testing.T) {
	cases := &fakeCases{status: legal.StatusSuccess}
	h := NewPipelineHandler(cases, &fakeAdvisories{}, 64)
	r := gin.New()
	r.POST("/cases", h.AnalyzeCase)

	build := func(docBody string) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("case_title", "Land grab"))
		require.NoError(t, mw.WriteField("use_embeddings", "true"))
		fw, err := mw.CreateFormFile(fieldStatement, "statement.txt")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("My neighbour encroached on my land."))
		fw, err = mw.CreateFormFile(fieldDocuments, "deed.txt")
		require.NoError(t, err)
		_, _ = fw.Write([]byte(docBody))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/cases", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, build("Sale deed"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Land grab", cases.got.CaseTitle)
	require.NotNil(t, cases.got.Statement)
	assert.Equal(t, "statement.txt", cases.got.Statement.Filename)
	assert.Nil(t, cases.got.FIR)
	require.Len(t, cases.got.OtherFiles, 1)
	assert.True(t, cases.got.UseEmbeddings)
	assert.False(t, cases.got.Translate)
	assert.True(t, cases.got.Clean)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, build(strings.Repeat("x", 100)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds the maximum")
}

func TestPipelineHandler_Advisory(t *testing.T) {
	adv := &fakeAdvisories{}
	h := NewPipelineHandler(&fakeCases{}, adv, 0)
	r := gin.New()
	r.POST("/advisories", h.AnalyzeAdvisory)

	rec, env := do(t, r, http.MethodPost, "/advisories", AdvisoryJSON{Objective: "recover deposit", Background: "landlord refuses"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"case_type":"advisory"`)
	assert.Equal(t, "recover deposit", adv.got.Objective)
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc{Component: "postgres", Fn: func(context.Context) error { return nil }}
	down := CheckFunc{Component: "redis", Fn: func(context.Context) error { return errors.New(errors.ErrCodeCacheError, "dial tcp: refused") }}

	r := gin.New()
	live := NewHealthHandler("1.0.0", nil, ok, down)
	r.GET("/healthz", live.Liveness)
	r.GET("/readyz", live.Readiness)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"alive"`)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["postgres"].Status)
	assert.Contains(t, resp.Components["redis"].Error, "refused")

	ready := gin.New()
	ready.GET("/readyz", NewHealthHandler("1.0.0", nil, ok).Readiness)
	rec = httptest.NewRecorder()
	ready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	empty := gin.New()
	empty.GET("/readyz", NewHealthHandler("1.0.0", nil).Readiness)
	rec = httptest.NewRecorder()
	empty.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)
}
