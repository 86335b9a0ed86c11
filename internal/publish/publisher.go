package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/metrics"
	"git.home.luguber.info/inful/dbtrunner/internal/storage"
)

// Fixed artifact names.
const (
	StaticDocsFile = "static_index.html"
	PublishedDocs  = "dbt_docs.html"
	ManifestFile   = "manifest.json"
	RunResultsFile = "run_results.json"
)

// StateFiles are copied by PublishState when present.
var StateFiles = []string{ManifestFile, RunResultsFile}

// MissingArtifactError reports a generated file that should exist but does not.
type MissingArtifactError struct {
	ExpectedPath string
	SearchedDir  string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("expected artifact %s not found", e.ExpectedPath)
}

func (e *MissingArtifactError) Category() errors.ErrorCategory { return errors.CategoryArtifact }

func (e *MissingArtifactError) Details() map[string]any {
	return map[string]any{
		"kind":          "missing_artifact",
		"expected_path": e.ExpectedPath,
		"searched_dir":  e.SearchedDir,
	}
}

// StoreOpener returns the store rooted at a destination directory.
type StoreOpener func(destDir string) (storage.Store, error)

// OpenFSStore is the default StoreOpener.
func OpenFSStore(destDir string) (storage.Store, error) {
	return storage.NewFSStore(destDir)
}

// Publisher copies build output into a destination store.
type Publisher struct {
	recorder metrics.Recorder
	open     StoreOpener
	logger   *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithRecorder(r metrics.Recorder) Option { return func(p *Publisher) { p.recorder = r } }
func WithStoreOpener(o StoreOpener) Option   { return func(p *Publisher) { p.open = o } }
func WithLogger(l *slog.Logger) Option       { return func(p *Publisher) { p.logger = l } }

func New(opts ...Option) *Publisher {
	p := &Publisher{
		recorder: metrics.NoopRecorder{},
		open:     OpenFSStore,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishDocs verifies buildOutputDir/static_index.html and copies it to
// destDir/dbt_docs.html, overwriting any previous copy. Returns the published path.
func (p *Publisher) PublishDocs(ctx context.Context, buildOutputDir, destDir string) (string, error) {
	src := filepath.Join(buildOutputDir, StaticDocsFile)
	info, err := os.Stat(src)
	if err != nil || !info.Mode().IsRegular() {
		return "", &MissingArtifactError{ExpectedPath: src, SearchedDir: buildOutputDir}
	}

	if page, err := InspectDocs(src); err != nil {
		p.logger.Warn("Could not inspect generated docs", logfields.Path(src), logfields.Error(err))
	} else {
		p.logger.Debug("Generated docs inspected",
			logfields.Path(src),
			slog.String("title", page.Title),
			slog.Int("scripts", page.Scripts))
	}

	store, err := p.open(destDir)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to prepare destination directory").
			WithContext("destination", destDir).
			Build()
	}
	obj, err := p.putFile(ctx, store, PublishedDocs, src)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryArtifact, "failed to publish docs").
			WithContext("source", src).
			WithContext("destination", destDir).
			Build()
	}

	p.recorder.IncArtifactPublished(PublishedDocs)
	p.logger.Info("Published docs",
		logfields.Path(obj.Path),
		slog.Int64("bytes", obj.Size),
		slog.String("sha256", obj.SHA256))
	return obj.Path, nil
}

// PublishState copies the build-state files present in buildOutputDir. Missing files are
// skipped; a copy failure is logged and the next file is attempted. Returns the names
// that were published.
func (p *Publisher) PublishState(ctx context.Context, buildOutputDir, destDir string) ([]string, error) {
	store, err := p.open(destDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to prepare destination directory").
			WithContext("destination", destDir).
			Build()
	}

	var published []string
	for _, name := range StateFiles {
		src := filepath.Join(buildOutputDir, name)
		if _, err := os.Stat(src); err != nil {
			p.logger.Debug("Build state file not present, skipping", logfields.Path(src))
			continue
		}
		if _, err := p.putFile(ctx, store, name, src); err != nil {
			p.logger.Warn("Failed to persist build state file", logfields.Path(src), logfields.Error(err))
			continue
		}
		p.recorder.IncArtifactPublished(name)
		published = append(published, name)
	}
	p.logger.Info("Persisted build state", slog.Any("files", published), logfields.Path(destDir))
	return published, nil
}

func (p *Publisher) putFile(ctx context.Context, store storage.Store, name, src string) (*storage.Object, error) {
	if fs, ok := store.(*storage.FSStore); ok {
		return fs.PutFile(ctx, name, src)
	}
	// #nosec G304 - src is inside the build output directory
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return store.Put(ctx, name, f)
}
