package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/pocketnotes/internal/config"
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/kuitang/pocketnotes/internal/storage"
)

// app holds the persistent flags and the lazily opened store shared by every command.
type app struct {
	backendFlag string
	pathFlag    string
	recordFlag  string
	verbose     bool

	backend storage.Backend
	store   *notes.Store
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "notesctl",
		Short: "Manage pocketnotes from the terminal",
		Long: `notesctl reads and edits the same note record the pocketnotes server uses.
Storage settings default to the server's environment (STORAGE_BACKEND, DATA_DIR, RECORD_NAME, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.backendFlag, "backend", "", "storage backend ("+strings.Join(kindNames(), ", ")+"); defaults to STORAGE_BACKEND")
	pf.StringVar(&a.pathFlag, "path", "", "data directory for the file and sqlite backends; defaults to DATA_DIR")
	pf.StringVar(&a.recordFlag, "record", "", "record name; defaults to RECORD_NAME")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newShowCmd(a),
		newTagsCmd(a),
		newFavCmd(a),
		newArchiveCmd(a),
		newRmCmd(a),
		newExportCmd(a),
	)
	return root
}

func kindNames() []string {
	names := make([]string, 0, len(storage.Kinds))
	for _, k := range storage.Kinds {
		names = append(names, string(k))
	}
	return names
}

// openStore loads the note record once per invocation.
func (a *app) openStore(ctx context.Context) (*notes.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	obs.Init(level, obs.WithText())

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(config.Flags{Backend: a.backendFlag})
	if err != nil {
		return nil, err
	}
	if a.pathFlag != "" {
		cfg.DataDir = a.pathFlag
	}
	if a.recordFlag != "" {
		cfg.RecordName = a.recordFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageBackend, err)
	}

	store := notes.NewStore(
		notes.WithStorage(backend),
		notes.WithPersistTimeout(cfg.PersistTimeout),
		notes.WithLogger(obs.Pkg("notesctl")),
	)
	if err := store.Load(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	a.backend = backend
	a.store = store
	return store, nil
}

// persisted reports the last persistence failure after a mutation.
func (a *app) persisted() error {
	if err := a.store.PersistErr(); err != nil {
		return fmt.Errorf("change was not saved: %w", err)
	}
	return nil
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	a.store = nil
	return err
}
