package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompts are always placed at the head of a prompt. They teach
// the model how to read the MemoryLog messages carrying recalled history.
var DefaultSystemPrompts = []string{
	"Think carefully about your responses.",
	"Work towards the enumerated system objectives.",
	"Use system messages that start with MemoryLog- as input.",
	"Use MemoryLog- messages to understand the context of the current message.",
	"MemoryLog- messages are previous messages in our current conversation.",
	"You have access to previous conversations by reading the MemoryLog- messages",
}

// Profile holds the agent identity and conversation defaults.
type Profile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Objectives  []string `yaml:"objectives"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
}

// DefaultProfile returns a profile with conversation defaults and no
// identity.
func DefaultProfile() *Profile {
	return &Profile{
		Model:       "gemini-2.5-flash",
		Temperature: 1.0,
	}
}

// LoadProfile reads a profile from the YAML file at path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read profile", goerr.V("path", path))
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, goerr.Wrap(err, "failed to parse profile", goerr.V("path", path))
	}
	return &profile, nil
}

// Save writes the profile as YAML to path, creating parent directories.
func (p *Profile) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(err, "failed to create profile directory", goerr.V("dir", dir))
		}
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal profile")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write profile", goerr.V("path", path))
	}
	return nil
}

// SystemPrompts returns the default prompts followed by the enumerated
// objectives.
func (p *Profile) SystemPrompts() []string {
	prompts := make([]string, 0, len(DefaultSystemPrompts)+len(p.Objectives))
	prompts = append(prompts, DefaultSystemPrompts...)
	for i, objective := range p.Objectives {
		prompts = append(prompts, fmt.Sprintf("Objective-%d: %s", i+1, objective))
	}
	return prompts
}
