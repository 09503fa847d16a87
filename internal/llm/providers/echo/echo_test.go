package echo

import (
	"context"
	"testing"

	"github.com/Corphon/TranslationStudio/internal/llm"
)

func TestEchoTranslator(t *testing.T) {
	tr, err := llm.NewTranslator("echo", nil)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	got, err := tr.Translate(context.Background(), "Good night", "en", "es")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "[es] Good night" {
		t.Errorf("got %q", got)
	}
}
