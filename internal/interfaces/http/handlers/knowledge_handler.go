package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LegalLens/internal/application/knowledge"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// KnowledgeService is the knowledge application service as seen by HTTP.
type KnowledgeService interface {
	Enqueue(ctx context.Context, req knowledge.IngestRequest) (*knowledge.IngestResult, error)
	Retrieve(ctx context.Context, domain, query string, topK int) []legal.RetrievedChunk
	Stats(ctx context.Context) map[string]knowledge.DomainStats
	Sources(ctx context.Context, domain string, limit, offset int) ([]*legal.KnowledgeSource, error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type RetrieveRequest struct {
	Domain string `json:"domain" binding:"required"`
	Query  string `json:"query" binding:"required"`
	TopK   int    `json:"top_k"`
}

// Retrieve handles POST /api/v1/knowledge/retrieve. An unknown domain or a
// backend failure yields an empty list, never an error.
func (h *KnowledgeHandler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	chunks := h.svc.Retrieve(c.Request.Context(), req.Domain, req.Query, req.TopK)
	respondOK(c, http.StatusOK, gin.H{
		"domain": req.Domain,
		"count":  len(chunks),
		"chunks": chunks,
	})
}

// Ingest handles POST /api/v1/knowledge/ingest. With a message bus the
// document is queued and 202 is returned.
func (h *KnowledgeHandler) Ingest(c *gin.Context) {
	var req knowledge.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	res, err := h.svc.Enqueue(c.Request.Context(), req)
	if err != nil {
		respondAppError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Queued {
		status = http.StatusAccepted
	}
	respondOK(c, status, res)
}

// Stats handles GET /api/v1/knowledge/stats.
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	respondOK(c, http.StatusOK, h.svc.Stats(c.Request.Context()))
}

// Sources handles GET /api/v1/knowledge/sources?domain=&limit=&offset=.
func (h *KnowledgeHandler) Sources(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	if limit == 0 || limit > 500 {
		limit = 50
	}
	sources, err := h.svc.Sources(c.Request.Context(), c.Query("domain"), limit, queryInt(c, "offset", 0))
	if err != nil {
		respondAppError(c, err)
		return
	}
	if sources == nil {
		sources = []*legal.KnowledgeSource{}
	}
	respondOK(c, http.StatusOK, sources)
}
