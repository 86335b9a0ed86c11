package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
)

const dirPrefix = "dbtrunner-"

// Manager handles workspace operations (both temporary and persistent).
type Manager struct {
	baseDir    string
	dir        string
	runID      string
	persistent bool
	logger     *slog.Logger
}

// NewManager creates a manager with an ephemeral directory named after runID.
func NewManager(baseDir, runID string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, runID: runID, logger: slog.Default()}
}

// NewPersistentManager uses baseDir/subdirName and never removes it.
func NewPersistentManager(baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if subdirName == "" {
		subdirName = "working"
	}
	return &Manager{
		baseDir:    baseDir,
		dir:        filepath.Join(baseDir, subdirName),
		persistent: true,
		logger:     slog.Default(),
	}
}

// FromConfig picks the mode from workspace.keep.
func FromConfig(cfg config.WorkspaceConfig, runID string) *Manager {
	if cfg.Keep {
		return NewPersistentManager(cfg.BaseDir, "working")
	}
	return NewManager(cfg.BaseDir, runID)
}

// WithLogger sets the logger used for lifecycle messages.
func (m *Manager) WithLogger(l *slog.Logger) *Manager {
	if l != nil {
		m.logger = l
	}
	return m
}

// Create creates the workspace directory.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace directory: %w", err)
		}
		m.logger.Info("Using persistent workspace", logfields.Workspace(m.dir))
		return nil
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	pattern := dirPrefix + "*"
	if id := shortID(m.runID); id != "" {
		pattern = dirPrefix + id + "-*"
	}
	dir, err := os.MkdirTemp(m.baseDir, pattern)
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.dir = dir
	m.logger.Info("Created workspace", logfields.Workspace(dir))
	return nil
}

// Path returns the workspace directory, empty before Create.
func (m *Manager) Path() string { return m.dir }

// Persistent reports whether Cleanup keeps the directory.
func (m *Manager) Persistent() bool { return m.persistent }

// CloneDir is where the repository named name is cloned. It is not created; the
// fetcher owns that path.
func (m *Manager) CloneDir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid clone directory name %q", name)
	}
	return filepath.Join(m.dir, name), nil
}

// Cleanup removes an ephemeral workspace. Persistent workspaces are kept.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if m.persistent {
		m.logger.Debug("Keeping persistent workspace", logfields.Workspace(m.dir))
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	m.logger.Info("Cleaned up workspace", logfields.Workspace(m.dir))
	m.dir = ""
	return nil
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}
