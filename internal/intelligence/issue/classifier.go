// Package issue scores a legal narrative against seven legal domains and
// names the primary and secondary issues it raises.
package issue

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/turtacn/LegalLens/internal/intelligence/embedding"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const (
	secondaryThreshold    = 0.1
	maxSecondaryDomains   = 2
	maxIssuesPerSecondary = 2
	errorIssue            = "Classification Error"
)

// Classifier assigns a ClassificationResult to a narrative. Implementations
// never return an error; failures are reported in ClassificationResult.Error.
type Classifier interface {
	Classify(ctx context.Context, text string, useEmbeddings bool) legal.ClassificationResult
}

// KeywordClassifier scores domains by keyword containment. When an encoder
// is configured and embeddings are requested, the text is also encoded;
// the vector does not change the scores, only the reported method.
type KeywordClassifier struct {
	encoder embedding.Encoder
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

type Option func(*KeywordClassifier)

// WithEncoder enables the embedding path.
func WithEncoder(enc embedding.Encoder) Option {
	return func(c *KeywordClassifier) { c.encoder = enc }
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(c *KeywordClassifier) { c.metrics = m }
}

func NewKeywordClassifier(log logging.Logger, opts ...Option) *KeywordClassifier {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &KeywordClassifier{logger: log.Named("issue-classifier")}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = prometheus.NewNoopAppMetrics()
	}
	return c
}

type domainScore struct {
	domain string
	score  float64
}

func (c *KeywordClassifier) Classify(ctx context.Context, text string, useEmbeddings bool) (result legal.ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = errorResult(fmt.Errorf("classifier panic: %v", r))
			c.logger.Error("classification failed", logging.String("error", result.Error))
		}
	}()

	lower := strings.ToLower(text)
	scores := keywordScores(lower)

	method := legal.MethodKeywords
	if useEmbeddings {
		if c.encoder == nil {
			c.logger.Debug("embeddings requested without an encoder, using keywords")
		} else if _, err := c.encoder.Encode(ctx, text); err != nil {
			c.logger.Warn("failed to get embeddings, using keyword-based classification", logging.Err(err))
		} else {
			method = legal.MethodEmbeddings
		}
	}

	ranked := make([]domainScore, len(domainOrder))
	for i, d := range domainOrder {
		ranked[i] = domainScore{domain: d, score: scores[d]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	primary := ranked[0].domain
	if ranked[0].score == 0 {
		primary = legal.UnknownDomain
	}

	var secondaryDomains []string
	for _, ds := range ranked[1:] {
		if ds.score > secondaryThreshold {
			secondaryDomains = append(secondaryDomains, ds.domain)
		}
	}
	if len(secondaryDomains) > maxSecondaryDomains {
		secondaryDomains = secondaryDomains[:maxSecondaryDomains]
	}

	primaryIssue := "General " + primary
	if found := identifyIssues(lower, primary); len(found) > 0 {
		primaryIssue = found[0]
	}

	secondaryIssues := []string{}
	for _, d := range secondaryDomains {
		found := identifyIssues(lower, d)
		if len(found) > maxIssuesPerSecondary {
			found = found[:maxIssuesPerSecondary]
		}
		secondaryIssues = append(secondaryIssues, found...)
	}

	rounded := make(map[string]float64, len(scores))
	for d, s := range scores {
		rounded[d] = round3(s)
	}

	c.metrics.RecordClassification("issue", primary, string(method))
	c.logger.Info("classification result",
		logging.String("domain", primary),
		logging.String("issue", primaryIssue),
		logging.String("method", string(method)))

	return legal.ClassificationResult{
		Domain:          primary,
		Confidence:      round3(ranked[0].score),
		PrimaryIssue:    primaryIssue,
		SecondaryIssues: secondaryIssues,
		AllDomainScores: rounded,
		Method:          method,
		TextLength:      len(text),
	}
}

// keywordScores returns each domain's share of all keyword hits. With no
// hits every score is zero.
func keywordScores(lower string) map[string]float64 {
	scores := make(map[string]float64, len(domainOrder))
	total := 0.0
	for _, d := range domainOrder {
		scores[d] = 0
		for _, kw := range domainKeywords[d] {
			if strings.Contains(lower, kw) {
				scores[d]++
				total++
			}
		}
	}
	if total > 0 {
		for d := range scores {
			scores[d] /= total
		}
	}
	return scores
}

// identifyIssues returns the issues of domain whose name, or any
// "/"-separated alternative of it, occurs in lower.
func identifyIssues(lower, domain string) []string {
	var found []string
	for _, name := range domainIssues[domain] {
		for _, alt := range strings.Split(strings.ToLower(name), "/") {
			if strings.Contains(lower, strings.TrimSpace(alt)) {
				found = append(found, name)
				break
			}
		}
	}
	return found
}

func errorResult(err error) legal.ClassificationResult {
	return legal.ClassificationResult{
		Domain:          legal.UnknownDomain,
		Confidence:      0,
		PrimaryIssue:    errorIssue,
		SecondaryIssues: []string{},
		Error:           err.Error(),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
