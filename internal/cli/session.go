package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/wignn/media-tools/internal/history"
	"github.com/wignn/media-tools/internal/queue"
	"github.com/wignn/media-tools/internal/runstore"
	"github.com/wignn/media-tools/internal/settings"
	"github.com/wignn/media-tools/internal/supervisor"
	"github.com/wignn/media-tools/internal/tool"
)

// session wires the full job pipeline for one CLI invocation: state
// lock, settings, durable history, process registry, supervisor, and
// the queue manager on top.
type session struct {
	StateDir string
	Lock     runstore.StateLock
	Settings settings.Settings
	History  *history.Store
	Registry *queue.Registry
	Manager  *queue.Manager
}

func resolveStateDir(flagValue string) (string, error) {
	dir := strings.TrimSpace(flagValue)
	if dir != "" {
		return dir, nil
	}
	return settings.DefaultStateDir()
}

func openSession(stateDirFlag string) (*session, error) {
	stateDir, err := resolveStateDir(stateDirFlag)
	if err != nil {
		return nil, err
	}

	lock, err := runstore.AcquireStateLock(stateDir)
	if err != nil {
		return nil, err
	}

	cfg, err := settings.Load(settings.DefaultPath(stateDir))
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	hist, err := history.Open(context.Background(), historyDBPath(stateDir))
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	registry := queue.NewRegistry()
	sup, err := supervisor.New(supervisor.Config{
		Binaries: tool.DefaultBinaries(),
		StateDir: stateDir,
		History:  hist,
	})
	if err != nil {
		registry.Close()
		_ = hist.Close()
		_ = lock.Release()
		return nil, err
	}

	manager, err := queue.NewManager(queue.Config{
		Runner:   sup,
		Registry: registry,
	})
	if err != nil {
		registry.Close()
		_ = hist.Close()
		_ = lock.Release()
		return nil, err
	}

	return &session{
		StateDir: stateDir,
		Lock:     lock,
		Settings: cfg,
		History:  hist,
		Registry: registry,
		Manager:  manager,
	}, nil
}

func (s *session) Close() {
	s.Registry.Close()
	_ = s.History.Close()
	_ = s.Lock.Release()
}

func historyDBPath(stateDir string) string {
	return filepath.Join(stateDir, "history.db")
}
