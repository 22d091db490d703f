package profile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile holds the fixed content of the guided listing dialogue.
type Profile struct {
	ID           string `toml:"id" json:"id"`
	SystemPrompt string `toml:"system_prompt" json:"systemPrompt"`
	Greeting     string `toml:"greeting" json:"greeting"`
	// Model overrides the provider default when set.
	Model string `toml:"model" json:"model,omitempty"`
}

var ErrIncompleteProfile = errors.New("profile requires system_prompt and greeting")

// Default returns the Leboncoin listing assistant.
func Default() Profile {
	return Profile{
		ID: "leboncoin-annonce",
		SystemPrompt: "Tu es un assistant spécialisé dans la création d'annonces pour Leboncoin. " +
			"Tu engages une conversation interactive pour recueillir toutes les informations nécessaires afin de créer une annonce de vente. " +
			"Commence par demander quel est l'objet à vendre, puis pose des questions complémentaires sur l'état du produit (neuf, bon état, mauvais état), " +
			"ses caractéristiques et ses éventuels défauts ou particularités. Une fois que tu as suffisamment d'informations, génère une description sobre, claire et professionnelle pour l'annonce. " +
			"Adapte ton langage et tes questions pour obtenir des détails précis et pertinents.",
		Greeting: "Bonjour ! Pour commencer, pouvez-vous me dire quel est l'objet que vous souhaitez vendre ?",
	}
}

// Load reads a TOML profile from path. Fields missing from the file keep their
// default values, so a file may override only the greeting, for example.
func Load(path string) (Profile, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", path, err)
	}

	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	p.Greeting = strings.TrimSpace(p.Greeting)
	p.Model = strings.TrimSpace(p.Model)
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate reports whether the profile can open a conversation.
func (p Profile) Validate() error {
	if p.SystemPrompt == "" || p.Greeting == "" {
		return ErrIncompleteProfile
	}
	return nil
}
