package ner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findEntity(ents []Entity, text string) (Entity, bool) {
	for _, e := range ents {
		if e.Text == text {
			return e, true
		}
	}
	return Entity{}, false
}

func TestRuleRecognizer_WitnessScenario(t *testing.T) {
	text := "Witness Ramesh saw the incident on 25/01/2024 at MG Road. Rs. 50,000 was stolen."
	ents, err := NewRuleRecognizer().Recognize(context.Background(), text)
	require.NoError(t, err)

	person, ok := findEntity(ents, "Ramesh")
	require.True(t, ok, "entities: %+v", ents)
	assert.Equal(t, LabelPerson, person.Label)
	assert.Equal(t, "Ramesh", text[person.Start:person.End])

	date, ok := findEntity(ents, "25/01/2024")
	require.True(t, ok)
	assert.Equal(t, LabelDate, date.Label)

	place, ok := findEntity(ents, "MG Road")
	require.True(t, ok)
	assert.Equal(t, LabelFac, place.Label)

	money, ok := findEntity(ents, "Rs. 50,000")
	require.True(t, ok)
	assert.Equal(t, LabelMoney, money.Label)
}

func TestRuleRecognizer_LongNarrative(t *testing.T) {
	text := "Witness Ramesh saw the incident on 25th January 2024 at MG Road, Bangalore.\n" +
		"The accused stole Rs. 50,000 from the victim. CCTV footage is available as evidence.\n" +
		"Another witness, Priya Kumar, testified that she saw the accused near the crime scene."
	ents, err := NewRuleRecognizer().Recognize(context.Background(), text)
	require.NoError(t, err)

	for _, want := range []struct{ text, label string }{
		{"Ramesh", LabelPerson},
		{"Priya Kumar", LabelPerson},
		{"25th January 2024", LabelDate},
		{"MG Road", LabelFac},
		{"Bangalore", LabelGPE},
		{"Rs. 50,000", LabelMoney},
	} {
		e, ok := findEntity(ents, want.text)
		if assert.True(t, ok, "missing %q in %+v", want.text, ents) {
			assert.Equal(t, want.label, e.Label, want.text)
		}
	}

	_, ok := findEntity(ents, "Another")
	assert.False(t, ok)
	_, ok = findEntity(ents, "CCTV")
	assert.False(t, ok)
}

func TestRuleRecognizer_HonorificsAndPlaces(t *testing.T) {
	text := "Mr. Anil Sharma met Dr. Meera in Pune near Koregaon Park."
	ents, err := NewRuleRecognizer().Recognize(context.Background(), text)
	require.NoError(t, err)

	for _, want := range []struct{ text, label string }{
		{"Anil Sharma", LabelPerson},
		{"Meera", LabelPerson},
		{"Pune", LabelGPE},
		{"Koregaon Park", LabelFac},
	} {
		e, ok := findEntity(ents, want.text)
		if assert.True(t, ok, "missing %q in %+v", want.text, ents) {
			assert.Equal(t, want.label, e.Label)
		}
	}
}

func TestRuleRecognizer_NoEntities(t *testing.T) {
	ents, err := NewRuleRecognizer().Recognize(context.Background(), "he assaulted me and caused severe injuries")
	require.NoError(t, err)
	assert.Empty(t, ents)
}

func TestRuleRecognizer_MonthsAreNotPlaces(t *testing.T) {
	ents, err := NewRuleRecognizer().Recognize(context.Background(), "It happened in January and again in March.")
	require.NoError(t, err)
	for _, e := range ents {
		assert.False(t, IsLocation(e.Label), "unexpected location %q", e.Text)
	}
}

func TestRuleRecognizer_SortedAndNonOverlapping(t *testing.T) {
	text := "Witness Ramesh saw it. Ramesh stated that INR 2,000 was paid on March 3, 2024 at Andheri Station."
	ents, err := NewRuleRecognizer().Recognize(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, ents)
	for i := 1; i < len(ents); i++ {
		assert.GreaterOrEqual(t, ents[i].Start, ents[i-1].End)
	}
	for _, e := range ents {
		assert.Equal(t, e.Text, text[e.Start:e.End])
	}
}

func TestRuleRecognizer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRuleRecognizer().Recognize(ctx, "Witness Ramesh")
	assert.Error(t, err)
}

func TestResolveOverlaps(t *testing.T) {
	in := []Entity{
		{Text: "b", Start: 5, End: 8},
		{Text: "a-long", Start: 0, End: 6},
		{Text: "a", Start: 0, End: 2},
		{Text: "c", Start: 10, End: 12},
	}
	out := resolveOverlaps(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a-long", out[0].Text)
	assert.Equal(t, "c", out[1].Text)
}

type failingRecognizer struct{}

func (failingRecognizer) Name() string { return "failing" }
func (failingRecognizer) Recognize(context.Context, string) ([]Entity, error) {
	return nil, assert.AnError
}

func TestWithFallback(t *testing.T) {
	r := WithFallback(failingRecognizer{}, NewRuleRecognizer(), nil)
	assert.Equal(t, "failing+rules", r.Name())

	ents, err := r.Recognize(context.Background(), "Witness Ramesh saw it")
	require.NoError(t, err)
	_, ok := findEntity(ents, "Ramesh")
	assert.True(t, ok)
}
