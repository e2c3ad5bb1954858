package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LegalLens/internal/intelligence/advisory"
	"github.com/turtacn/LegalLens/internal/intelligence/evidence"
	"github.com/turtacn/LegalLens/internal/intelligence/issue"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// SectionLookup is the read side of the section mapper.
type SectionLookup interface {
	MapSections(domain, primaryIssue string, secondaryIssues []string) legal.SectionMapping
	SectionDetails(actName, number string) (legal.SectionRecord, error)
	Search(query string) []legal.SectionRecord
}

// AnalysisHandler exposes the individual analysis components.
type AnalysisHandler struct {
	classifier issue.Classifier
	sections   SectionLookup
	evidence   evidence.Extractor
	advisory   advisory.Classifier
}

func NewAnalysisHandler(c issue.Classifier, s SectionLookup, e evidence.Extractor, a advisory.Classifier) *AnalysisHandler {
	return &AnalysisHandler{classifier: c, sections: s, evidence: e, advisory: a}
}

type ClassifyRequest struct {
	Text          string `json:"text" binding:"required"`
	UseEmbeddings bool   `json:"use_embeddings"`
}

type MapSectionsRequest struct {
	Domain          string   `json:"domain" binding:"required"`
	PrimaryIssue    string   `json:"primary_issue" binding:"required"`
	SecondaryIssues []string `json:"secondary_issues"`
}

type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// Classify handles POST /api/v1/classify.
func (h *AnalysisHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	respondOK(c, http.StatusOK, h.classifier.Classify(c.Request.Context(), req.Text, req.UseEmbeddings))
}

// MapSections handles POST /api/v1/sections/map.
func (h *AnalysisHandler) MapSections(c *gin.Context) {
	var req MapSectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	respondOK(c, http.StatusOK, h.sections.MapSections(req.Domain, req.PrimaryIssue, req.SecondaryIssues))
}

// SearchSections handles GET /api/v1/sections/search?q=.
func (h *AnalysisHandler) SearchSections(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, http.StatusBadRequest, errors.ErrCodeBadRequest, "query parameter q is required")
		return
	}
	results := h.sections.Search(q)
	respondOK(c, http.StatusOK, gin.H{
		"query":   q,
		"count":   len(results),
		"results": results,
	})
}

// SectionDetails handles GET /api/v1/sections/:act/:number.
func (h *AnalysisHandler) SectionDetails(c *gin.Context) {
	rec, err := h.sections.SectionDetails(c.Param("act"), c.Param("number"))
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rec)
}

// Evidence handles POST /api/v1/evidence.
func (h *AnalysisHandler) Evidence(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	respondOK(c, http.StatusOK, h.evidence.Extract(c.Request.Context(), req.Text))
}

// ClassifyAdvisory handles POST /api/v1/advisory/classify.
func (h *AnalysisHandler) ClassifyAdvisory(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	respondOK(c, http.StatusOK, h.advisory.Classify(c.Request.Context(), req.Text))
}
