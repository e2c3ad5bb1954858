package reasoning

import (
	"context"
	"strings"

	"github.com/turtacn/LegalLens/pkg/errors"
)

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"ta": "Tamil",
	"te": "Telugu",
	"kn": "Kannada",
	"ml": "Malayalam",
	"mr": "Marathi",
	"gu": "Gujarati",
	"bn": "Bengali",
	"pa": "Punjabi",
	"ur": "Urdu",
	"or": "Odia",
	"as": "Assamese",
}

// LanguageName returns the English name of an ISO 639-1 code, or the
// upper-cased code when unknown.
func LanguageName(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return strings.ToUpper(code)
}

// GeneratorTranslator translates to English by prompting a Generator.
type GeneratorTranslator struct {
	generator Generator
}

func NewGeneratorTranslator(gen Generator) *GeneratorTranslator {
	return &GeneratorTranslator{generator: gen}
}

func (t *GeneratorTranslator) Translate(ctx context.Context, text, sourceLanguage string) (string, error) {
	if t.generator == nil {
		return "", errors.New(errors.ErrCodeLLMUnavailable, "no generator configured for translation")
	}
	prompt, err := render(translationPrompt, struct{ Language, Text string }{LanguageName(sourceLanguage), text})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to render translation prompt")
	}
	out, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
