// Package advisory routes pre-litigation advisory requests to one of seven
// practice domains by semantic similarity.
package advisory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/LegalLens/internal/intelligence/embedding"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const (
	secondaryThreshold = 0.5
	secondaryWindow    = 3
)

// Classifier assigns an advisory domain. Failures are reported in
// AdvisoryClassification.Error, never returned.
type Classifier interface {
	Classify(ctx context.Context, text string) legal.AdvisoryClassification
}

// SimilarityClassifier compares the encoded request against one centroid per
// domain. Centroids are computed once and never modified.
type SimilarityClassifier struct {
	encoder   embedding.Encoder
	centroids map[string][]float32
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// NewSimilarityClassifier encodes every domain centroid with enc.
func NewSimilarityClassifier(ctx context.Context, enc embedding.Encoder, metrics *prometheus.AppMetrics, log logging.Logger) (*SimilarityClassifier, error) {
	if enc == nil {
		return nil, errors.New(errors.ErrCodeEncoderFailed, "advisory classifier requires an encoder")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}

	c := &SimilarityClassifier{
		encoder:   enc,
		centroids: make(map[string][]float32, len(domainOrder)),
		metrics:   metrics,
		logger:    log.Named("advisory-classifier"),
	}
	for _, d := range domainOrder {
		vec, err := enc.Encode(ctx, strings.Join(domainPhrases[d], " "))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEncoderFailed, "failed to encode centroid for "+d)
		}
		c.centroids[d] = vec
	}

	c.logger.Info("advisory classifier initialized",
		logging.Int("domains", len(domainOrder)),
		logging.String("encoder", enc.Name()))
	return c, nil
}

func (c *SimilarityClassifier) Classify(ctx context.Context, text string) (result legal.AdvisoryClassification) {
	defer func() {
		if r := recover(); r != nil {
			result = failed(fmt.Errorf("advisory classifier panic: %v", r))
			c.logger.Error("advisory classification failed", logging.String("error", result.Error))
		}
	}()

	vec, err := c.encoder.Encode(ctx, text)
	if err != nil {
		c.logger.Error("advisory classification failed", logging.Err(err))
		return failed(errors.Wrap(err, errors.ErrCodeAdvisoryClassificationFailed, "failed to encode advisory text"))
	}

	ranked := make([]legal.DomainScore, len(domainOrder))
	for i, d := range domainOrder {
		ranked[i] = legal.DomainScore{Domain: d, Confidence: embedding.CosineSimilarity(vec, c.centroids[d])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Confidence > ranked[j].Confidence })

	secondaries := []string{}
	end := 1 + secondaryWindow
	if end > len(ranked) {
		end = len(ranked)
	}
	for _, ds := range ranked[1:end] {
		if ds.Confidence > secondaryThreshold {
			secondaries = append(secondaries, ds.Domain)
		}
	}

	primary := ranked[0]
	c.metrics.RecordClassification("advisory", primary.Domain, c.encoder.Name())
	c.logger.Info("advisory classified",
		logging.String("domain", primary.Domain),
		logging.Float64("confidence", primary.Confidence))

	return legal.AdvisoryClassification{
		Domain:           primary.Domain,
		Confidence:       primary.Confidence,
		SecondaryDomains: secondaries,
		AllPredictions:   ranked,
	}
}

func failed(err error) legal.AdvisoryClassification {
	return legal.AdvisoryClassification{
		Domain:           legal.GeneralDomain,
		Confidence:       0,
		SecondaryDomains: []string{},
		AllPredictions:   []legal.DomainScore{},
		Error:            err.Error(),
	}
}
