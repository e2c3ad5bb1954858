package advisory

import (
	"context"
	stderrors "errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/intelligence/embedding"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// planeEncoder maps every centroid text to a unit vector whose cosine with
// the query vector (1, 0) is the configured value.
type planeEncoder struct {
	cosines  map[string]float64
	queryErr error
	panicky  bool
}

func (p *planeEncoder) Name() string    { return "plane" }
func (p *planeEncoder) Dimensions() int { return 2 }
func (p *planeEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	for d, c := range p.cosines {
		if text == strings.Join(domainPhrases[d], " ") {
			return []float32{float32(c), float32(math.Sqrt(1 - c*c))}, nil
		}
	}
	if p.panicky {
		panic("encoder exploded")
	}
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	return []float32{1, 0}, nil
}

func newPlane(t *testing.T, enc *planeEncoder) *SimilarityClassifier {
	t.Helper()
	c, err := NewSimilarityClassifier(context.Background(), enc, nil, nil)
	require.NoError(t, err)
	return c
}

func TestClassify_RankingAndSecondaryWindow(t *testing.T) {
	c := newPlane(t, &planeEncoder{cosines: map[string]float64{
		"Property":    0.9,
		"Immigration": 0.2,
		"Business":    0.8,
		"Contract":    0.52,
		"Employment":  0.6,
		"Family":      0.55,
		"Tax":         0.2,
	}})

	got := c.Classify(context.Background(), "anything")
	require.Empty(t, got.Error)
	assert.Equal(t, "Property", got.Domain)
	assert.InDelta(t, 0.9, got.Confidence, 1e-4)
	// Contract clears the threshold but sits outside the next three.
	assert.Equal(t, []string{"Business", "Employment", "Family"}, got.SecondaryDomains)

	order := make([]string, 0, len(got.AllPredictions))
	for i, p := range got.AllPredictions {
		order = append(order, p.Domain)
		if i > 0 {
			assert.GreaterOrEqual(t, got.AllPredictions[i-1].Confidence, p.Confidence)
		}
	}
	assert.Equal(t, []string{"Property", "Business", "Employment", "Family", "Contract", "Immigration", "Tax"}, order)
}

func TestClassify_SecondaryThreshold(t *testing.T) {
	c := newPlane(t, &planeEncoder{cosines: map[string]float64{
		"Property":    0.3,
		"Immigration": 0.1,
		"Business":    0.2,
		"Contract":    0.95,
		"Employment":  0.49,
		"Family":      0.7,
		"Tax":         0.05,
	}})

	got := c.Classify(context.Background(), "review my contract")
	assert.Equal(t, "Contract", got.Domain)
	assert.Equal(t, []string{"Family"}, got.SecondaryDomains)
	assert.NotContains(t, got.SecondaryDomains, got.Domain)
}

func TestClassify_EncodeFailure(t *testing.T) {
	c := newPlane(t, &planeEncoder{
		cosines:  map[string]float64{"Property": 1, "Immigration": 1, "Business": 1, "Contract": 1, "Employment": 1, "Family": 1, "Tax": 1},
		queryErr: stderrors.New("quota exceeded"),
	})

	got := c.Classify(context.Background(), "help")
	assert.Equal(t, legal.GeneralDomain, got.Domain)
	assert.Zero(t, got.Confidence)
	assert.Empty(t, got.AllPredictions)
	assert.NotNil(t, got.SecondaryDomains)
	assert.Contains(t, got.Error, "quota exceeded")
}

func TestClassify_PanicIsContained(t *testing.T) {
	c := newPlane(t, &planeEncoder{
		cosines: map[string]float64{"Property": 1, "Immigration": 1, "Business": 1, "Contract": 1, "Employment": 1, "Family": 1, "Tax": 1},
		panicky: true,
	})

	got := c.Classify(context.Background(), "help")
	assert.Equal(t, legal.GeneralDomain, got.Domain)
	assert.Contains(t, got.Error, "encoder exploded")
}

func TestNewSimilarityClassifier_CentroidFailure(t *testing.T) {
	_, err := NewSimilarityClassifier(context.Background(), &planeEncoder{queryErr: stderrors.New("down")}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEncoderFailed))

	_, err = NewSimilarityClassifier(context.Background(), nil, nil, nil)
	assert.Error(t, err)
}

func TestClassify_HashingEncoder(t *testing.T) {
	enc, err := embedding.NewHashingEncoder(384)
	require.NoError(t, err)
	c, err := NewSimilarityClassifier(context.Background(), enc, nil, nil)
	require.NoError(t, err)

	tests := []struct {
		text string
		want string
	}{
		{"I need help with my visa application, work permit and passport verification before travel.", "Immigration"},
		{"Received a tax notice for my income tax return; I want to file an appeal and ask for a penalty waiver.", "Tax"},
		{"We want child custody and guardianship after the divorce and separation.", "Family"},
		{"My employer withheld salary and compensation after termination; I want severance.", "Employment"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := c.Classify(context.Background(), tt.text)
			require.Empty(t, got.Error)
			assert.Equal(t, tt.want, got.Domain)
			assert.Len(t, got.AllPredictions, len(Domains()))
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0+1e-6)
		})
	}
}

func TestDomainAccessors(t *testing.T) {
	assert.Equal(t, []string{"Property", "Immigration", "Business", "Contract", "Employment", "Family", "Tax"}, Domains())
	for _, d := range Domains() {
		assert.Len(t, PhrasesFor(d), 5, d)
		assert.True(t, IsDomain(d))
	}
	assert.Nil(t, PhrasesFor("Criminal"))
	assert.False(t, IsDomain("Criminal"))

	ds := Domains()
	ds[0] = "mutated"
	assert.Equal(t, "Property", Domains()[0])
}
