// Package storage moves spreadsheet files between object stores and the
// local disk. Sheet engines only read local files, so a remote source is
// downloaded to a temporary file before it is opened, and a remote
// destination is written locally and uploaded once the sink is finished.
//
// Supported locations are plain paths, file:// URIs, s3://bucket/key and
// gs://bucket/key.
package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/config"
	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/logger"
)

// Schemes handled by the package.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
)

// Location is a parsed file location.
type Location struct {
	Scheme string
	Bucket string
	Key    string
	// Path is the local path when Scheme is SchemeFile.
	Path string
}

// IsRemote reports whether the location lives in an object store.
func (l Location) IsRemote() bool {
	return l.Scheme != SchemeFile
}

// BaseName is the last element of the path or key.
func (l Location) BaseName() string {
	if l.IsRemote() {
		return path.Base(l.Key)
	}
	return filepath.Base(l.Path)
}

func (l Location) String() string {
	if l.IsRemote() {
		return l.Scheme + "://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Parse parses a path or URI. Anything without a recognised scheme is a
// local path.
func Parse(uri string) (Location, error) {
	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeFile, Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid location").
			WithDetail("uri", uri)
	}

	switch u.Scheme {
	case SchemeFile:
		return Location{Scheme: SchemeFile, Path: u.Path}, nil
	case SchemeS3, SchemeGCS:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, errors.Newf(errors.ErrorTypeValidation,
				"location %q must name a bucket and an object key", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, errors.Newf(errors.ErrorTypeValidation, "unsupported location scheme %q", u.Scheme).
			WithDetail("uri", uri)
	}
}

// Backend transfers objects of one object store.
type Backend interface {
	// Download writes the object to dst.
	Download(ctx context.Context, bucket, key string, dst *os.File) error
	// Upload stores everything read from src as the object.
	Upload(ctx context.Context, bucket, key string, src io.Reader) error
	Close() error
}

// Config holds credentials and transfer settings for remote backends.
type Config struct {
	// Region is the AWS region for s3:// locations.
	Region string `yaml:"region" json:"region"`
	// CredentialsFile is a Google service account file for gs:// locations.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// PartSize is the S3 multipart chunk size in bytes.
	PartSize int64 `yaml:"part_size" json:"part_size"`
	// Concurrency is the number of parallel S3 part transfers.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// TempDir holds staged files. Empty means os.TempDir().
	TempDir string `yaml:"temp_dir" json:"temp_dir"`
	// MaxAttempts bounds each download or upload. Zero selects 3.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// RetryDelay is the backoff before the first retry.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// FromConfig converts the storage section of a connector configuration.
func FromConfig(sc config.StorageConfig) Config {
	return Config(sc)
}

type backendFactory func(ctx context.Context, cfg Config) (Backend, error)

var backendFactories = map[string]backendFactory{
	SchemeS3:  newS3Backend,
	SchemeGCS: newGCSBackend,
}

// Manager stages remote files locally. Backends are created on first use.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	backends map[string]Backend
}

// NewManager creates a Manager. A nil logger selects the global one.
func NewManager(cfg Config, l *zap.Logger) *Manager {
	if l == nil {
		l = logger.Component("storage")
	}
	return &Manager{cfg: cfg, logger: l, backends: make(map[string]Backend)}
}

// Register installs b for scheme, replacing the built-in backend.
func (m *Manager) Register(scheme string, b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[scheme] = b
}

func (m *Manager) backend(ctx context.Context, scheme string) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.backends[scheme]; ok {
		return b, nil
	}
	factory, ok := backendFactories[scheme]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "no backend for scheme %q", scheme)
	}
	b, err := factory(ctx, m.cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to initialize %s backend", scheme))
	}
	m.backends[scheme] = b
	return b, nil
}

// Staged is a local file standing in for a location.
type Staged struct {
	Location Location
	// Path is the local file to open or create.
	Path string

	manager *Manager
	tempDir string
}

// Cleanup removes the temporary copy of a remote location. It is a no-op
// for local files.
func (s *Staged) Cleanup() error {
	if s.tempDir == "" {
		return nil
	}
	dir := s.tempDir
	s.tempDir = ""
	return os.RemoveAll(dir)
}

// Commit uploads the local file to its remote location and removes the
// temporary copy. It is a no-op for local files.
func (s *Staged) Commit(ctx context.Context) error {
	if !s.Location.IsRemote() {
		return nil
	}
	err := s.manager.upload(ctx, s.Location, s.Path)
	return stderrors.Join(err, s.Cleanup())
}

// Fetch makes the file at uri available locally. Remote objects are
// downloaded into a temporary directory under their own base name, so the
// extension still selects the format. Call Cleanup when done.
func (m *Manager) Fetch(ctx context.Context, uri string) (*Staged, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	if !loc.IsRemote() {
		return &Staged{Location: loc, Path: loc.Path, manager: m}, nil
	}

	staged, err := m.stage(loc)
	if err != nil {
		return nil, err
	}
	if err := m.download(ctx, loc, staged.Path); err != nil {
		_ = staged.Cleanup()
		return nil, err
	}
	return staged, nil
}

// Prepare reserves a local path for writing uri. Remote locations are
// uploaded by Commit.
func (m *Manager) Prepare(uri string) (*Staged, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	if !loc.IsRemote() {
		return &Staged{Location: loc, Path: loc.Path, manager: m}, nil
	}
	return m.stage(loc)
}

func (m *Manager) stage(loc Location) (*Staged, error) {
	dir, err := os.MkdirTemp(m.cfg.TempDir, "sheetport-")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create staging directory")
	}
	return &Staged{
		Location: loc,
		Path:     filepath.Join(dir, loc.BaseName()),
		manager:  m,
		tempDir:  dir,
	}, nil
}

func (m *Manager) download(ctx context.Context, loc Location, dst string) error {
	b, err := m.backend(ctx, loc.Scheme)
	if err != nil {
		return err
	}

	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create staged file")
	}
	err = retryPolicyFor(m.cfg).Execute(ctx, func(attempt int) error {
		if attempt > 0 {
			m.logger.Warn("retrying download", zap.String("location", loc.String()), zap.Int("attempt", attempt+1))
			if err := rewind(f, true); err != nil {
				return err
			}
		}
		return b.Download(ctx, loc.Bucket, loc.Key, f)
	})
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to download object").
			WithDetail("location", loc.String())
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close staged file")
	}

	m.logger.Debug("downloaded object",
		zap.String("location", loc.String()),
		zap.String("path", dst))
	return nil
}

func (m *Manager) upload(ctx context.Context, loc Location, src string) error {
	b, err := m.backend(ctx, loc.Scheme)
	if err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open staged file")
	}
	defer f.Close()

	err = retryPolicyFor(m.cfg).Execute(ctx, func(attempt int) error {
		if attempt > 0 {
			m.logger.Warn("retrying upload", zap.String("location", loc.String()), zap.Int("attempt", attempt+1))
			if err := rewind(f, false); err != nil {
				return err
			}
		}
		return b.Upload(ctx, loc.Bucket, loc.Key, f)
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload object").
			WithDetail("location", loc.String())
	}

	m.logger.Info("uploaded object", zap.String("location", loc.String()))
	return nil
}

// rewind moves f back to its start before another transfer attempt,
// discarding partial content when truncate is set.
func rewind(f *os.File, truncate bool) error {
	if truncate {
		if err := f.Truncate(0); err != nil {
			return err
		}
	}
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// Close releases every backend created by the manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for scheme, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s backend: %w", scheme, err))
		}
		delete(m.backends, scheme)
	}
	return stderrors.Join(errs...)
}
