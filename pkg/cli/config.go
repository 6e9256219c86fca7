package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hiroq/engram/pkg/adapter"
	"github.com/hiroq/engram/pkg/agent"
	"github.com/hiroq/engram/pkg/memory"
	"github.com/hiroq/engram/pkg/repository"
	"github.com/hiroq/engram/pkg/utils/logging"
)

// config holds configuration values
type config struct {
	// Ledger
	dbPath            string
	firestoreProject  string
	firestoreDatabase string

	// Adapters
	geminiProject       string
	geminiLocation      string
	embeddingDimensions int64

	// Conversation
	profilePath string
	budget      int64

	logLevel string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Aliases:     []string{"d"},
			Usage:       "Path to the SQLite memory database",
			Value:       "engram.db",
			Sources:     cli.EnvVars("ENGRAM_DB"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID (switches the ledger to Firestore)",
			Sources:     cli.EnvVars("ENGRAM_FIRESTORE_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("ENGRAM_FIRESTORE_DATABASE"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Path to the agent profile file",
			Value:       "engram.yml",
			Sources:     cli.EnvVars("ENGRAM_PROFILE"),
			Destination: &cfg.profilePath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ENGRAM_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding dimensionality (0 keeps the model default)",
			Sources:     cli.EnvVars("ENGRAM_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDimensions,
		},
		&cli.IntFlag{
			Name:        "budget",
			Usage:       "Prompt token budget",
			Value:       1000,
			Sources:     cli.EnvVars("ENGRAM_TOKEN_BUDGET"),
			Destination: &cfg.budget,
		},
	}
}

// setupLogging replaces the default logger according to the log-level flag.
func (cfg *config) setupLogging() {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
}

// newLedger creates the configured ledger backend: Firestore when a project
// is set, a local SQLite file otherwise.
func (cfg *config) newLedger(ctx context.Context) (repository.Ledger, error) {
	if cfg.firestoreProject != "" {
		if cfg.firestoreDatabase == "" {
			return nil, goerr.New("firestore-database is required")
		}
		ledger, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore ledger")
		}
		return ledger, nil
	}

	if cfg.dbPath == "" {
		return nil, goerr.New("db path is required")
	}
	ledger, err := repository.NewSQLite(cfg.dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sqlite ledger")
	}
	return ledger, nil
}

// newGemini creates a new Gemini adapter instance. Extra options are applied
// after the flag-derived ones.
func (cfg *config) newGemini(ctx context.Context, opts ...adapter.GeminiOption) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	options := []adapter.GeminiOption{
		adapter.WithEmbeddingDimensions(int32(cfg.embeddingDimensions)),
	}
	options = append(options, opts...)

	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, options...)
}

// newMemory composes the ledger and the Gemini embedder into a loaded
// Memory. The caller closes the returned ledger.
func (cfg *config) newMemory(ctx context.Context) (*memory.Memory, repository.Ledger, error) {
	ledger, err := cfg.newLedger(ctx)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		_ = ledger.Close()
		return nil, nil, err
	}

	mem, err := memory.New(ctx, ledger, gemini)
	if err != nil {
		_ = ledger.Close()
		return nil, nil, goerr.Wrap(err, "failed to load memory")
	}
	return mem, ledger, nil
}

// loadProfile reads the agent profile, falling back to defaults when the
// file does not exist yet. A profile without a model gets the default one,
// since both token accounting and the completion call need it.
func (cfg *config) loadProfile() (*agent.Profile, error) {
	if _, err := os.Stat(cfg.profilePath); os.IsNotExist(err) {
		return agent.DefaultProfile(), nil
	}

	profile, err := agent.LoadProfile(cfg.profilePath)
	if err != nil {
		return nil, err
	}
	if profile.Model == "" {
		profile.Model = agent.DefaultProfile().Model
	}
	return profile, nil
}
