package ner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/LegalLens/internal/intelligence/common"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/errors"
)

// ---------------------------------------------------------------------------
// Label set
// ---------------------------------------------------------------------------

const LabelO = "O"

// DefaultLabelSet is the BIO label set the token classifier emits, in
// emission-column order.
var DefaultLabelSet = []string{
	LabelO,
	"B-" + LabelPerson, "I-" + LabelPerson,
	"B-" + LabelDate, "I-" + LabelDate,
	"B-" + LabelGPE, "I-" + LabelGPE,
	"B-" + LabelLoc, "I-" + LabelLoc,
	"B-" + LabelFac, "I-" + LabelFac,
	"B-" + LabelMoney, "I-" + LabelMoney,
}

// ModelConfig configures a ModelRecognizer.
type ModelConfig struct {
	ModelID             string
	MaxSequenceLength   int
	LabelSet            []string
	ConfidenceThreshold float64
	UseCRF              bool
	Timeout             time.Duration
}

// DefaultModelConfig returns the defaults for the legal token classifier.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		ModelID:             "legal-ner-bio-v1",
		MaxSequenceLength:   256,
		LabelSet:            DefaultLabelSet,
		ConfidenceThreshold: 0.5,
		UseCRF:              true,
		Timeout:             5 * time.Second,
	}
}

// Validate checks the configuration for consistency.
func (c *ModelConfig) Validate() error {
	if c.ModelID == "" {
		return errors.NewInvalidInputError("model_id is required")
	}
	if c.MaxSequenceLength <= 0 {
		return errors.NewInvalidInputError("max_sequence_length must be positive")
	}
	if len(c.LabelSet) == 0 {
		return errors.NewInvalidInputError("label_set must not be empty")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.NewInvalidInputError("confidence_threshold must be in [0, 1]")
	}
	return nil
}

// tokenSpan holds a token and its byte offsets in the original text.
type tokenSpan struct {
	Text  string
	Start int
	End   int
}

type windowResult struct {
	StartToken    int
	Labels        []string
	Probabilities [][]float64
}

// ---------------------------------------------------------------------------
// ModelRecognizer
// ---------------------------------------------------------------------------

// ModelRecognizer decodes BIO emissions from a hosted token classifier.
type ModelRecognizer struct {
	backend    common.ModelBackend
	config     *ModelConfig
	logger     logging.Logger
	labelIndex map[string]int
	indexLabel map[int]string
	transition [][]float64
}

// NewModelRecognizer creates a recognizer over backend.
func NewModelRecognizer(backend common.ModelBackend, config *ModelConfig, logger logging.Logger) (*ModelRecognizer, error) {
	if backend == nil {
		return nil, errors.NewInvalidInputError("backend is required")
	}
	if config == nil {
		config = DefaultModelConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	labelIdx := make(map[string]int, len(config.LabelSet))
	idxLabel := make(map[int]string, len(config.LabelSet))
	for i, l := range config.LabelSet {
		labelIdx[l] = i
		idxLabel[i] = l
	}

	m := &ModelRecognizer{
		backend:    backend,
		config:     config,
		logger:     logger.Named("ner_model"),
		labelIndex: labelIdx,
		indexLabel: idxLabel,
	}
	if config.UseCRF {
		m.transition = buildBIOTransitionMatrix(config.LabelSet)
	}
	return m, nil
}

func (m *ModelRecognizer) Name() string { return "model:" + m.config.ModelID }

// Recognize tokenizes text, classifies it window by window and returns the
// entity spans scoring at least the confidence threshold.
func (m *ModelRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	spans := tokenize(text)
	if len(spans) == 0 {
		return []Entity{}, nil
	}

	tokens := make([]string, len(spans))
	for i, s := range spans {
		tokens[i] = norm.NFC.String(s.Text)
	}

	windows := buildSlidingWindows(len(tokens), m.config.MaxSequenceLength)
	results := make([]*windowResult, len(windows))
	for i, w := range windows {
		emission, err := m.invokeBackend(ctx, tokens[w[0]:w[1]])
		if err != nil {
			return nil, fmt.Errorf("backend predict window %d: %w", i, err)
		}
		var labels []string
		if m.transition != nil {
			labels = viterbiDecode(emission, m.transition, m.config.LabelSet)
		} else {
			labels = argmaxDecode(emission, m.indexLabel)
		}
		results[i] = &windowResult{StartToken: w[0], Labels: labels, Probabilities: emission}
	}

	labels, probs := mergeWindows(results, len(tokens), len(m.config.LabelSet))
	labels = fixBIOLegality(labels)

	var out []Entity
	for _, e := range bioToEntities(text, labels, probs, spans) {
		if e.Score >= m.config.ConfidenceThreshold {
			out = append(out, e)
		}
	}
	if out == nil {
		out = []Entity{}
	}
	m.logger.Debug("model recognition complete",
		logging.Int("tokens", len(tokens)),
		logging.Int("entities", len(out)))
	return out, nil
}

func (m *ModelRecognizer) invokeBackend(ctx context.Context, tokens []string) ([][]float64, error) {
	req := &common.PredictRequest{
		ModelName:   m.config.ModelID,
		InputData:   common.EncodeTokenList(tokens),
		InputFormat: common.FormatJSON,
		Metadata:    map[string]string{"task": "ner", "num_tokens": fmt.Sprintf("%d", len(tokens))},
	}

	timeout := m.config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := m.backend.Predict(ctx2, req)
	if err != nil {
		return nil, err
	}
	emission, err := common.DecodeFloat64Matrix(resp.Outputs["emission"])
	if err != nil {
		return nil, fmt.Errorf("decode emission matrix: %w", err)
	}
	if len(emission) != len(tokens) {
		return nil, fmt.Errorf("emission rows %d != tokens %d", len(emission), len(tokens))
	}
	for i, row := range emission {
		if len(row) != len(m.config.LabelSet) {
			return nil, fmt.Errorf("emission row %d cols %d != labels %d", i, len(row), len(m.config.LabelSet))
		}
	}
	return emission, nil
}

// ---------------------------------------------------------------------------
// Tokenization
// ---------------------------------------------------------------------------

// tokenize splits text on whitespace and punctuation. Offsets index the
// original bytes.
func tokenize(text string) []tokenSpan {
	var spans []tokenSpan
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		if isPunctuation(r) {
			spans = append(spans, tokenSpan{Text: text[i : i+size], Start: i, End: i + size})
			i += size
			continue
		}
		start := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) || isPunctuation(r) {
				break
			}
			i += size
		}
		// Trailing '.' and ',' become their own tokens; interior ones stay
		// ("50,000", "Rs.50").
		end := i
		for end > start && (text[end-1] == '.' || text[end-1] == ',') {
			end--
		}
		if end == start {
			end = i
		}
		spans = append(spans, tokenSpan{Text: text[start:end], Start: start, End: end})
		for j := end; j < i; j++ {
			spans = append(spans, tokenSpan{Text: text[j : j+1], Start: j, End: j + 1})
		}
	}
	return spans
}

func isPunctuation(r rune) bool {
	switch r {
	case ';', ':', '!', '?', '(', ')', '[', ']', '{', '}', '"':
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Sliding windows
// ---------------------------------------------------------------------------

// buildSlidingWindows returns [start, end) pairs with half-window overlap.
func buildSlidingWindows(numTokens, maxLen int) [][2]int {
	if numTokens <= maxLen {
		return [][2]int{{0, numTokens}}
	}
	step := maxLen / 2
	if step <= 0 {
		step = 1
	}
	var windows [][2]int
	for start := 0; start < numTokens; start += step {
		end := start + maxLen
		if end > numTokens {
			end = numTokens
		}
		windows = append(windows, [2]int{start, end})
		if end == numTokens {
			break
		}
	}
	return windows
}

// mergeWindows resolves overlapping tokens to the window with the most
// confident prediction.
func mergeWindows(results []*windowResult, totalTokens, numLabels int) ([]string, [][]float64) {
	labels := make([]string, totalTokens)
	probs := make([][]float64, totalTokens)
	best := make([]float64, totalTokens)
	for i := range labels {
		labels[i] = LabelO
		probs[i] = make([]float64, numLabels)
		best[i] = -1
	}
	for _, wr := range results {
		for j := range wr.Labels {
			g := wr.StartToken + j
			if g >= totalTokens {
				break
			}
			p := maxFloat64Slice(wr.Probabilities[j])
			if p > best[g] {
				best[g] = p
				labels[g] = wr.Labels[j]
				copy(probs[g], wr.Probabilities[j])
			}
		}
	}
	return labels, probs
}

func maxFloat64Slice(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	m := s[0]
	for _, v := range s[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// BIO decoding
// ---------------------------------------------------------------------------

// fixBIOLegality turns every orphan I-X into B-X.
func fixBIOLegality(labels []string) []string {
	fixed := make([]string, len(labels))
	copy(fixed, labels)
	for i, l := range fixed {
		if !strings.HasPrefix(l, "I-") {
			continue
		}
		typ := l[2:]
		if i == 0 {
			fixed[i] = "B-" + typ
			continue
		}
		prev := fixed[i-1]
		if prev == LabelO || len(prev) < 3 || prev[2:] != typ {
			fixed[i] = "B-" + typ
		}
	}
	return fixed
}

// bioToEntities converts labels to spans over the original text.
func bioToEntities(text string, labels []string, probs [][]float64, spans []tokenSpan) []Entity {
	var out []Entity
	n := len(labels)
	for i := 0; i < n; {
		if !strings.HasPrefix(labels[i], "B-") {
			i++
			continue
		}
		typ := labels[i][2:]
		startTok := i
		i++
		for i < n && labels[i] == "I-"+typ {
			i++
		}
		start, end := spans[startTok].Start, spans[i-1].End
		out = append(out, Entity{
			Text:  text[start:end],
			Label: typ,
			Start: start,
			End:   end,
			Score: entityConfidence(probs, startTok, i),
		})
	}
	return out
}

// entityConfidence is the geometric mean of the per-token max probabilities.
func entityConfidence(probs [][]float64, startTok, endTok int) float64 {
	n := endTok - startTok
	if n <= 0 {
		return 0
	}
	logSum := 0.0
	for i := startTok; i < endTok && i < len(probs); i++ {
		p := maxFloat64Slice(probs[i])
		if p <= 0 {
			return 0
		}
		logSum += math.Log(p)
	}
	return math.Exp(logSum / float64(n))
}

// viterbiDecode finds the best label path under BIO transition constraints.
func viterbiDecode(emission, transition [][]float64, labelSet []string) []string {
	seqLen := len(emission)
	numLabels := len(labelSet)
	if seqLen == 0 {
		return []string{}
	}

	dp := make([][]float64, seqLen)
	back := make([][]int, seqLen)
	for t := range dp {
		dp[t] = make([]float64, numLabels)
		back[t] = make([]int, numLabels)
	}
	for j := 0; j < numLabels; j++ {
		score := safeLog(emission[0][j])
		if strings.HasPrefix(labelSet[j], "I-") {
			score = math.Inf(-1)
		}
		dp[0][j] = score
		back[0][j] = -1
	}
	for t := 1; t < seqLen; t++ {
		for j := 0; j < numLabels; j++ {
			bestScore, bestPrev := math.Inf(-1), 0
			for k := 0; k < numLabels; k++ {
				s := dp[t-1][k] + safeLog(transition[k][j]) + safeLog(emission[t][j])
				if s > bestScore {
					bestScore, bestPrev = s, k
				}
			}
			dp[t][j] = bestScore
			back[t][j] = bestPrev
		}
	}

	bestFinal := 0
	for j := 1; j < numLabels; j++ {
		if dp[seqLen-1][j] > dp[seqLen-1][bestFinal] {
			bestFinal = j
		}
	}
	path := make([]int, seqLen)
	path[seqLen-1] = bestFinal
	for t := seqLen - 2; t >= 0; t-- {
		path[t] = back[t+1][path[t+1]]
	}

	labels := make([]string, seqLen)
	for t, idx := range path {
		if idx >= 0 && idx < numLabels {
			labels[t] = labelSet[idx]
		} else {
			labels[t] = LabelO
		}
	}
	return labels
}

func safeLog(x float64) float64 {
	if x <= 0 {
		return -1e10
	}
	return math.Log(x)
}

func argmaxDecode(emission [][]float64, indexLabel map[int]string) []string {
	labels := make([]string, len(emission))
	for i, row := range emission {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		l, ok := indexLabel[best]
		if !ok {
			l = LabelO
		}
		labels[i] = l
	}
	return labels
}

// buildBIOTransitionMatrix gives legal transitions weight 1 and illegal ones
// (O -> I-X, B-X/I-X -> I-Y) weight 0.
func buildBIOTransitionMatrix(labelSet []string) [][]float64 {
	n := len(labelSet)
	trans := make([][]float64, n)
	for i, from := range labelSet {
		trans[i] = make([]float64, n)
		for j, to := range labelSet {
			if isLegalBIOTransition(from, to) {
				trans[i][j] = 1.0
			}
		}
	}
	return trans
}

func isLegalBIOTransition(from, to string) bool {
	if to == LabelO || strings.HasPrefix(to, "B-") {
		return true
	}
	if !strings.HasPrefix(to, "I-") || from == LabelO {
		return false
	}
	if strings.HasPrefix(from, "B-") || strings.HasPrefix(from, "I-") {
		return from[2:] == to[2:]
	}
	return false
}
