package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LegalLens/internal/application/pipeline"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// Multipart field names.
const (
	fieldStatement = "statement"
	fieldFIR       = "fir"
	fieldDocuments = "documents"
)

type CaseAnalyzer interface {
	Analyze(ctx context.Context, req pipeline.CaseRequest) *legal.PipelineResult
}

type AdvisoryAnalyzer interface {
	Analyze(ctx context.Context, req pipeline.AdvisoryRequest) *legal.PipelineResult
}

// PipelineHandler runs the two end-to-end pipelines. Both endpoints accept
// JSON, or multipart/form-data when files are attached.
type PipelineHandler struct {
	cases      CaseAnalyzer
	advisories AdvisoryAnalyzer
	maxUpload  int64
}

func NewPipelineHandler(cases CaseAnalyzer, advisories AdvisoryAnalyzer, maxUpload int64) *PipelineHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	return &PipelineHandler{cases: cases, advisories: advisories, maxUpload: maxUpload}
}

// CaseJSON is the JSON form of a case request. Translate defaults to false
// and Clean to true.
type CaseJSON struct {
	CaseTitle     string `json:"case_title"`
	StatementText string `json:"statement_text"`
	FIRText       string `json:"fir_text"`
	Translate     *bool  `json:"translate"`
	Clean         *bool  `json:"clean"`
	UseEmbeddings bool   `json:"use_embeddings"`
}

type AdvisoryJSON struct {
	CaseTitle  string `json:"case_title"`
	Objective  string `json:"objective"`
	Background string `json:"background"`
}

// AnalyzeCase handles POST /api/v1/cases.
func (h *PipelineHandler) AnalyzeCase(c *gin.Context) {
	var req pipeline.CaseRequest
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			respondBindError(c, err)
			return
		}
		req = pipeline.CaseRequest{
			CaseTitle:     c.PostForm("case_title"),
			StatementText: c.PostForm("statement_text"),
			FIRText:       c.PostForm("fir_text"),
			Translate:     formBool(c, "translate", false),
			Clean:         formBool(c, "clean", true),
			UseEmbeddings: formBool(c, "use_embeddings", false),
		}
		if req.Statement, err = formFile(form, fieldStatement, h.maxUpload); err != nil {
			respondAppError(c, err)
			return
		}
		if req.FIR, err = formFile(form, fieldFIR, h.maxUpload); err != nil {
			respondAppError(c, err)
			return
		}
		if req.OtherFiles, err = formFiles(form, fieldDocuments, h.maxUpload); err != nil {
			respondAppError(c, err)
			return
		}
	} else {
		var body CaseJSON
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		req = pipeline.CaseRequest{
			CaseTitle:     body.CaseTitle,
			StatementText: body.StatementText,
			FIRText:       body.FIRText,
			Translate:     boolOr(body.Translate, false),
			Clean:         boolOr(body.Clean, true),
			UseEmbeddings: body.UseEmbeddings,
		}
	}
	respondPipeline(c, h.cases.Analyze(c.Request.Context(), req))
}

// AnalyzeAdvisory handles POST /api/v1/advisories.
func (h *PipelineHandler) AnalyzeAdvisory(c *gin.Context) {
	var req pipeline.AdvisoryRequest
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			respondBindError(c, err)
			return
		}
		req = pipeline.AdvisoryRequest{
			CaseTitle:  c.PostForm("case_title"),
			Objective:  c.PostForm("objective"),
			Background: c.PostForm("background"),
		}
		if req.Files, err = formFiles(form, fieldDocuments, h.maxUpload); err != nil {
			respondAppError(c, err)
			return
		}
	} else {
		var body AdvisoryJSON
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		req = pipeline.AdvisoryRequest{CaseTitle: body.CaseTitle, Objective: body.Objective, Background: body.Background}
	}
	respondPipeline(c, h.advisories.Analyze(c.Request.Context(), req))
}

// respondPipeline returns 200 for a completed run and 422 with the failed
// record otherwise.
func respondPipeline(c *gin.Context, res *legal.PipelineResult) {
	if res.Status == legal.StatusSuccess {
		respondOK(c, http.StatusOK, res)
		return
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"success": false,
		"data":    res,
		"error":   ErrorBody{Code: errors.ErrCodePipelineStageFailed.String(), Message: res.Error},
	})
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func formBool(c *gin.Context, name string, def bool) bool {
	v, ok := c.GetPostForm(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
