package storage

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/sheetport/pkg/config"
	"github.com/ajitpratap0/sheetport/pkg/errors"
)

type memBackend struct {
	objects map[string][]byte
	closed  bool
	failGet error
	// flaky fails this many downloads after writing a partial object
	flaky int
	gets  int
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (b *memBackend) Download(_ context.Context, bucket, key string, dst *os.File) error {
	b.gets++
	if b.failGet != nil {
		return b.failGet
	}
	data, ok := b.objects[bucket+"/"+key]
	if !ok {
		return os.ErrNotExist
	}
	if b.gets <= b.flaky {
		_, _ = dst.Write(data[:len(data)/2])
		return stderrors.New("connection reset")
	}
	_, err := dst.Write(data)
	return err
}

func (b *memBackend) Upload(_ context.Context, bucket, key string, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	b.objects[bucket+"/"+key] = data
	return nil
}

func (b *memBackend) Close() error {
	b.closed = true
	return nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		uri     string
		want    Location
		wantErr bool
	}{
		{uri: "data/report.xlsx", want: Location{Scheme: SchemeFile, Path: "data/report.xlsx"}},
		{uri: "file:///tmp/report.xlsx", want: Location{Scheme: SchemeFile, Path: "/tmp/report.xlsx"}},
		{uri: "s3://bucket/in/report.xlsx", want: Location{Scheme: SchemeS3, Bucket: "bucket", Key: "in/report.xlsx"}},
		{uri: "gs://bucket/data.csv.gz", want: Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "data.csv.gz"}},
		{uri: "s3://bucket", wantErr: true},
		{uri: "ftp://host/file.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := Parse(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationNames(t *testing.T) {
	loc := Location{Scheme: SchemeS3, Bucket: "b", Key: "dir/data.csv"}
	assert.True(t, loc.IsRemote())
	assert.Equal(t, "data.csv", loc.BaseName())
	assert.Equal(t, "s3://b/dir/data.csv", loc.String())

	local := Location{Scheme: SchemeFile, Path: filepath.Join("dir", "data.csv")}
	assert.False(t, local.IsRemote())
	assert.Equal(t, "data.csv", local.BaseName())
}

func TestFetchLocalIsPassThrough(t *testing.T) {
	m := NewManager(Config{}, zaptest.NewLogger(t))
	staged, err := m.Fetch(context.Background(), "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "report.xlsx", staged.Path)
	assert.NoError(t, staged.Cleanup())
	assert.NoError(t, staged.Commit(context.Background()))
}

func TestFetchRemote(t *testing.T) {
	backend := newMemBackend()
	backend.objects["bucket/in/data.csv.gz"] = []byte("payload")

	m := NewManager(Config{TempDir: t.TempDir()}, zaptest.NewLogger(t))
	m.Register(SchemeS3, backend)

	staged, err := m.Fetch(context.Background(), "s3://bucket/in/data.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, "data.csv.gz", filepath.Base(staged.Path), "the extension is kept")

	content, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))

	require.NoError(t, staged.Cleanup())
	_, err = os.Stat(staged.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestFetchRemoteFailure(t *testing.T) {
	backend := newMemBackend()
	backend.failGet = stderrors.New("access denied")

	dir := t.TempDir()
	m := NewManager(Config{TempDir: dir, MaxAttempts: 2, RetryDelay: time.Millisecond}, zaptest.NewLogger(t))
	m.Register(SchemeGCS, backend)

	_, err := m.Fetch(context.Background(), "gs://bucket/data.xlsx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, 2, backend.gets)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory is removed on failure")
}

func TestFetchRetriesPartialDownload(t *testing.T) {
	backend := newMemBackend()
	backend.objects["bucket/data.csv"] = []byte("id,name\n1,alice\n")
	backend.flaky = 2

	m := NewManager(Config{TempDir: t.TempDir(), RetryDelay: time.Millisecond}, zaptest.NewLogger(t))
	m.Register(SchemeS3, backend)

	staged, err := m.Fetch(context.Background(), "s3://bucket/data.csv")
	require.NoError(t, err)
	defer staged.Cleanup()

	content, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,alice\n", string(content), "partial attempts are discarded")
	assert.Equal(t, 3, backend.gets)
}

func TestPrepareAndCommit(t *testing.T) {
	backend := newMemBackend()
	m := NewManager(Config{TempDir: t.TempDir()}, zaptest.NewLogger(t))
	m.Register(SchemeGCS, backend)

	staged, err := m.Prepare("gs://bucket/out/report.csv")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(staged.Path, []byte("a,b\n"), 0o600))

	require.NoError(t, staged.Commit(context.Background()))
	assert.Equal(t, []byte("a,b\n"), backend.objects["bucket/out/report.csv"])

	_, err = os.Stat(staged.Path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, m.Close())
	assert.True(t, backend.closed)
}

func TestPrepareLocal(t *testing.T) {
	m := NewManager(Config{}, zaptest.NewLogger(t))
	staged, err := m.Prepare("out.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "out.xlsx", staged.Path)
	assert.False(t, staged.Location.IsRemote())
}

func TestFromConfig(t *testing.T) {
	sc := config.NewBaseConfig("x", "source").Storage
	sc.Region = "eu-west-1"

	cfg := FromConfig(sc)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, int64(5*1024*1024), cfg.PartSize)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestRetryPolicy(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	err := rp.Execute(context.Background(), func(int) error {
		calls++
		return stderrors.New("unavailable")
	})
	assert.ErrorContains(t, err, "all 3 attempts failed")
	assert.Equal(t, 3, calls)

	calls = 0
	err = rp.Execute(context.Background(), func(int) error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "context errors are not retried")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := &RetryPolicy{MaxAttempts: 2, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}
	err = slow.Execute(ctx, func(int) error { return stderrors.New("unavailable") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryDelayIsCapped(t *testing.T) {
	rp := &RetryPolicy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, rp.delay(0))
	assert.Equal(t, 2*time.Second, rp.delay(1))
	assert.Equal(t, 3*time.Second, rp.delay(5))
}
