package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestLoadProfileMissingFile(t *testing.T) {
	cfg := config{profilePath: filepath.Join(t.TempDir(), "absent.yml")}

	profile, err := cfg.loadProfile()
	gt.NoError(t, err)
	gt.Equal(t, profile.Model, "gemini-2.5-flash")
	gt.Equal(t, profile.Temperature, 1.0)
}

func TestLoadProfileFillsMissingModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	gt.NoError(t, os.WriteFile(path, []byte("name: archie\ntemperature: 0.3\n"), 0o644))

	cfg := config{profilePath: path}
	profile, err := cfg.loadProfile()
	gt.NoError(t, err)
	gt.Equal(t, profile.Name, "archie")
	gt.Equal(t, profile.Temperature, 0.3)

	// The completion call and token accounting both need a model
	gt.Equal(t, profile.Model, "gemini-2.5-flash")
}

func TestLoadProfileKeepsConfiguredModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	gt.NoError(t, os.WriteFile(path, []byte("model: gemini-2.5-pro\n"), 0o644))

	cfg := config{profilePath: path}
	profile, err := cfg.loadProfile()
	gt.NoError(t, err)
	gt.Equal(t, profile.Model, "gemini-2.5-pro")
}
