package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestDefaultProfileIsValid(t *testing.T) {
	p := Default()
	if err := p.Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
	if !strings.Contains(p.Greeting, "objet que vous souhaitez vendre") {
		t.Fatalf("unexpected greeting: %s", p.Greeting)
	}
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := writeProfile(t, `
greeting = "Salut ! Que vendez-vous ?"
model = "gpt-4o"
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if p.Greeting != "Salut ! Que vendez-vous ?" {
		t.Fatalf("greeting not overridden: %s", p.Greeting)
	}
	if p.Model != "gpt-4o" {
		t.Fatalf("model not overridden: %s", p.Model)
	}
	if p.SystemPrompt != Default().SystemPrompt {
		t.Fatal("system prompt should keep its default")
	}
}

func TestLoadRejectsBlankGreeting(t *testing.T) {
	path := writeProfile(t, `greeting = "   "`)

	if _, err := Load(path); !errors.Is(err, ErrIncompleteProfile) {
		t.Fatalf("expected ErrIncompleteProfile, got %v", err)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeProfile(t, `greeting = `)

	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
