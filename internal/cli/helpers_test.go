package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	ffmpegResolver *mockFFmpegResolver
	settings       *mockSettings
	remover        *mockRemoverFactory
	publisher      *mockPublisherFactory
	stdout         *syncBuffer
	stderr         *syncBuffer
}

func newTestMocks() *testMocks {
	return &testMocks{
		ffmpegResolver: &mockFFmpegResolver{},
		settings:       &mockSettings{},
		remover:        &mockRemoverFactory{mockRemover: &mockRemover{}},
		publisher:      &mockPublisherFactory{},
		stdout:         &syncBuffer{},
		stderr:         &syncBuffer{},
	}
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

// testEnvOptions configures a test environment.
type testEnvOptions struct {
	lookup func(string) (string, bool)
	mocks  *testMocks
}

// testEnvOption configures testEnv.
type testEnvOption func(*testEnvOptions)

func withEnvVars(vars map[string]string) testEnvOption {
	return func(o *testEnvOptions) { o.lookup = staticEnv(vars) }
}

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env and the mocks for assertions.
func testEnv(opts ...testEnvOption) (*Env, *testMocks) {
	options := &testEnvOptions{
		lookup: staticEnv(nil),
		mocks:  newTestMocks(),
	}
	for _, opt := range opts {
		opt(options)
	}

	m := options.mocks
	env := &Env{
		Stdout:           m.stdout,
		Stderr:           m.stderr,
		LookupEnv:        options.lookup,
		NumCPU:           func() int { return 8 },
		Version:          "test",
		FFmpegResolver:   m.ffmpegResolver,
		Settings:         m.settings,
		RemoverFactory:   m.remover,
		PublisherFactory: m.publisher,
	}
	return env, m
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// staticEnv returns a lookup function that reads from the given map.
func staticEnv(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// createTestMediaFile creates a temporary media file for testing.
// The file is automatically cleaned up after the test.
func createTestMediaFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake media content"), 0o600); err != nil {
		t.Fatalf("failed to create test media file: %v", err)
	}
	return path
}
