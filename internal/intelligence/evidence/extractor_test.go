package evidence

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/intelligence/ner"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

type stubRecognizer struct {
	ents  []ner.Entity
	err   error
	panic bool
}

func (s *stubRecognizer) Name() string { return "stub" }
func (s *stubRecognizer) Recognize(ctx context.Context, text string) ([]ner.Entity, error) {
	if s.panic {
		panic("model crashed")
	}
	return s.ents, s.err
}

// entity locates the first occurrence of lit in text.
func entity(t *testing.T, text, lit, label string) ner.Entity {
	t.Helper()
	i := strings.Index(text, lit)
	require.GreaterOrEqual(t, i, 0, lit)
	return ner.Entity{Text: lit, Label: label, Start: i, End: i + len(lit), Score: 1}
}

func TestExtract_WitnessScenario(t *testing.T) {
	text := "Witness Ramesh saw the incident on 25/01/2024 at MG Road. Rs. 50,000 was stolen."
	e := NewPatternExtractor(ner.NewRuleRecognizer(), nil, nil)

	got := e.Extract(context.Background(), text)
	require.Empty(t, got.Error)

	require.NotEmpty(t, got.Witnesses)
	assert.Equal(t, "Ramesh", got.Witnesses[0].Name)
	assert.True(t, got.Witnesses[0].IsWitness)
	assert.Contains(t, []string{"witness", "saw"}, got.Witnesses[0].Type)

	require.NotEmpty(t, got.Dates)
	assert.Equal(t, "25/01/2024", got.Dates[0].Date)

	require.NotEmpty(t, got.Locations)
	assert.Equal(t, "MG Road", got.Locations[0].Location)

	require.Len(t, got.Money, 1)
	assert.Equal(t, "Rs. 50,000", got.Money[0].Amount)
	assert.Equal(t, legal.Position{Start: strings.Index(text, "Rs."), End: strings.Index(text, " was")}, got.Money[0].Position)

	assert.Equal(t, len(text), got.Summary.TextLength)
	assert.Equal(t, 1, got.Summary.ConfirmedWitnesses)
}

func TestExtract_Narrative(t *testing.T) {
	text := "Witness Ramesh saw the incident on 25th January 2024 at MG Road, Bangalore.\n" +
		"The accused stole Rs. 50,000 from the victim. CCTV footage is available as evidence.\n" +
		"Another witness, Priya Kumar, testified that she saw the accused near the crime scene."
	e := NewPatternExtractor(ner.NewRuleRecognizer(), nil, nil)

	got := e.Extract(context.Background(), text)

	names := make([]string, 0, len(got.Witnesses))
	for _, w := range got.Witnesses {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"Ramesh", "Priya Kumar"}, names)

	refs := make([]string, 0, len(got.Documents))
	for _, d := range got.Documents {
		refs = append(refs, d.Reference)
	}
	assert.Equal(t, []string{"CCTV footage", "evidence", "CCTV"}, refs)
	assert.Equal(t, "document", got.Documents[0].Type)
	assert.Equal(t, "evidence", got.Documents[1].Type)
	assert.Equal(t, "cctv", got.Documents[2].Type)

	require.Len(t, got.Locations, 2)
	assert.Equal(t, "fac", got.Locations[0].Type)
	assert.Equal(t, "Bangalore", got.Locations[1].Location)
	assert.Equal(t, "gpe", got.Locations[1].Type)

	require.Len(t, got.Dates, 1)
	assert.Equal(t, "25th January 2024", got.Dates[0].Date)
}

func TestExtract_WitnessTyping(t *testing.T) {
	text := "Meena, the victim, saw everything. " + strings.Repeat("x", 120) + " Anil went to the market to buy vegetables."
	rec := &stubRecognizer{ents: []ner.Entity{
		entity(t, text, "Meena", ner.LabelPerson),
		entity(t, text, "Anil", ner.LabelPerson),
	}}
	got := NewPatternExtractor(rec, nil, nil).Extract(context.Background(), text)

	require.Len(t, got.Witnesses, 2)
	assert.Equal(t, "saw", got.Witnesses[0].Type)
	assert.True(t, got.Witnesses[0].IsWitness)
	assert.Equal(t, "person", got.Witnesses[1].Type)
	assert.False(t, got.Witnesses[1].IsWitness)
	assert.Equal(t, 1, got.Summary.ConfirmedWitnesses)
	assert.Equal(t, 2, got.Summary.TotalWitnesses)
}

func TestExtract_RepeatedNameKeepsEveryMention(t *testing.T) {
	text := "Ramesh was at home that evening. " + strings.Repeat("x", 120) + " Later Ramesh testified before the magistrate."
	first := entity(t, text, "Ramesh", ner.LabelPerson)
	second := strings.LastIndex(text, "Ramesh")
	rec := &stubRecognizer{ents: []ner.Entity{
		first,
		{Text: "Ramesh", Label: ner.LabelPerson, Start: second, End: second + len("Ramesh"), Score: 1},
	}}
	got := NewPatternExtractor(rec, nil, nil).Extract(context.Background(), text)

	require.Len(t, got.Witnesses, 2)
	assert.False(t, got.Witnesses[0].IsWitness)
	assert.Equal(t, "person", got.Witnesses[0].Type)
	assert.True(t, got.Witnesses[1].IsWitness)
	assert.Equal(t, "testified", got.Witnesses[1].Type)
	assert.Equal(t, second, got.Witnesses[1].Position.Start)
	assert.Equal(t, 1, got.Summary.ConfirmedWitnesses)
	assert.Equal(t, 2, got.Summary.TotalWitnesses)
}

func TestExtract_DocumentsUnique(t *testing.T) {
	text := "Receipt No. 123 was attached. Receipt No. 123 was attached again. The receipt and the " +
		"receipts, an email dated 12/03/2023, a WhatsApp chat and SMS messages. Exhibit A-7 and video recording."
	got := NewPatternExtractor(nil, nil, nil).Extract(context.Background(), text)

	seen := map[string]bool{}
	for _, d := range got.Documents {
		assert.False(t, seen[d.Reference], "duplicate %q", d.Reference)
		seen[d.Reference] = true
	}
	assert.True(t, seen["Receipt No. 123"])
	assert.True(t, seen["email dated 12/03/2023"])
	assert.True(t, seen["WhatsApp chat"])
	assert.True(t, seen["video recording"])
	assert.True(t, seen["receipts"])
	assert.Equal(t, got.Summary.TotalDocuments, len(got.Documents))
}

func TestExtract_DatesNERFirstThenRegex(t *testing.T) {
	text := "On 12/03/2023 the notice came; again on 12/03/2023, then 2023-03-15 and March 5, 2023."
	rec := &stubRecognizer{ents: []ner.Entity{entity(t, text, "12/03/2023", ner.LabelDate)}}
	got := NewPatternExtractor(rec, nil, nil).Extract(context.Background(), text)

	dates := make([]string, 0, len(got.Dates))
	for _, d := range got.Dates {
		dates = append(dates, d.Date)
	}
	assert.Equal(t, []string{"12/03/2023", "2023-03-15", "March 5, 2023"}, dates)
	assert.Equal(t, strings.Index(text, "12/03/2023"), got.Dates[0].Position.Start)
}

func TestExtract_MoneyFamilies(t *testing.T) {
	text := "Paid Rs 1,000 and INR 2500.50 and ₹300, then rs. 1,000 and Rs 1,000 again."
	got := NewPatternExtractor(nil, nil, nil).Extract(context.Background(), text)

	amounts := make([]string, 0, len(got.Money))
	for _, m := range got.Money {
		amounts = append(amounts, m.Amount)
		assert.Equal(t, "money", m.Type)
	}
	assert.Equal(t, []string{"Rs 1,000", "rs. 1,000", "INR 2500.50", "₹300"}, amounts)
}

func TestExtract_LocationsFromNEROnly(t *testing.T) {
	text := "They met in Delhi near the Yamuna river at Connaught Place."
	rec := &stubRecognizer{ents: []ner.Entity{
		entity(t, text, "Delhi", ner.LabelGPE),
		entity(t, text, "Yamuna", ner.LabelLoc),
		entity(t, text, "Connaught Place", ner.LabelFac),
		entity(t, text, "Delhi", ner.LabelGPE),
	}}
	got := NewPatternExtractor(rec, nil, nil).Extract(context.Background(), text)

	require.Len(t, got.Locations, 3)
	assert.Equal(t, "gpe", got.Locations[0].Type)
	assert.Equal(t, "loc", got.Locations[1].Type)
	assert.Equal(t, "fac", got.Locations[2].Type)

	none := NewPatternExtractor(nil, nil, nil).Extract(context.Background(), text)
	assert.Empty(t, none.Locations)
	assert.NotNil(t, none.Locations)
	assert.Empty(t, none.Witnesses)
}

func TestExtract_RecognizerFailure(t *testing.T) {
	rec := &stubRecognizer{err: stderrors.New("backend down")}
	got := NewPatternExtractor(rec, nil, nil).Extract(context.Background(), "Rs. 500 on 01/01/2024")

	assert.Contains(t, got.Error, "backend down")
	assert.Empty(t, got.Money)
	assert.Empty(t, got.Dates)
	assert.NotNil(t, got.Documents)
}

func TestExtract_PanicIsContained(t *testing.T) {
	got := NewPatternExtractor(&stubRecognizer{panic: true}, nil, nil).Extract(context.Background(), "text")
	assert.Contains(t, got.Error, "model crashed")
	assert.Empty(t, got.Witnesses)
}

func TestNewSpan_ContextWindow(t *testing.T) {
	text := strings.Repeat("a", 100) + "TARGET" + strings.Repeat("b", 100)
	sp := newSpan("x", text, 100, 106)
	assert.Equal(t, strings.Repeat("a", 50)+"TARGET"+strings.Repeat("b", 50), sp.Context)

	short := newSpan("x", "  hi  ", 2, 4)
	assert.Equal(t, "hi", short.Context)
}

func TestNewSpan_RuneSafe(t *testing.T) {
	text := strings.Repeat("₹", 30) + " Rs. 500 " + strings.Repeat("₹", 30)
	start := strings.Index(text, "Rs.")
	sp := newSpan("money", text, start, start+len("Rs. 500"))
	assert.True(t, utf8.ValidString(sp.Context))
	assert.Contains(t, sp.Context, "Rs. 500")
}
