package cli

import (
	"context"
	"sync"

	"github.com/alnah/silence-remover/internal/config"
	"github.com/alnah/silence-remover/internal/job"
	"github.com/alnah/silence-remover/internal/remover"
	"github.com/alnah/silence-remover/internal/storage"
)

// ---------------------------------------------------------------------------
// Mock FFmpegResolver
// ---------------------------------------------------------------------------

type mockFFmpegResolver struct {
	ResolveFunc      func(ctx context.Context, explicit string) (string, error)
	CheckVersionFunc func(ctx context.Context, ffmpegPath string)

	mu           sync.Mutex
	resolveCalls int
	explicit     string
}

func (m *mockFFmpegResolver) Resolve(ctx context.Context, explicit string) (string, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.explicit = explicit
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, explicit)
	}
	return "/usr/bin/ffmpeg", nil
}

func (m *mockFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	if m.CheckVersionFunc != nil {
		m.CheckVersionFunc(ctx, ffmpegPath)
	}
}

func (m *mockFFmpegResolver) ResolveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls
}

func (m *mockFFmpegResolver) Explicit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.explicit
}

// ---------------------------------------------------------------------------
// Mock Settings
// ---------------------------------------------------------------------------

type mockSettings struct {
	LoadFunc func() (config.Overrides, error)
}

func (m *mockSettings) Load() (config.Overrides, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Overrides{}, nil
}

func (m *mockSettings) Set(string, string) error         { return nil }
func (m *mockSettings) Get(string) (string, error)       { return "", nil }
func (m *mockSettings) List() (map[string]string, error) { return map[string]string{}, nil }
func (m *mockSettings) Path() string                     { return "/dev/null" }

// ---------------------------------------------------------------------------
// Mock RemoverFactory + Remover
// ---------------------------------------------------------------------------

type mockRemover struct {
	AnalyzeFunc func(ctx context.Context) (remover.Analysis, error)
	ProcessFunc func(ctx context.Context, listeners ...job.ProgressListener) (remover.Result, error)
}

func (m *mockRemover) Analyze(ctx context.Context) (remover.Analysis, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx)
	}
	return remover.Analysis{}, nil
}

func (m *mockRemover) Process(ctx context.Context, listeners ...job.ProgressListener) (remover.Result, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, listeners...)
	}
	return remover.Result{}, nil
}

type mockRemoverFactory struct {
	mockRemover *mockRemover

	mu         sync.Mutex
	calls      int
	cfg        config.Project
	ffmpegPath string
	optCount   int
}

func (f *mockRemoverFactory) NewRemover(cfg config.Project, ffmpegPath string, opts ...remover.Option) Remover {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cfg = cfg
	f.ffmpegPath = ffmpegPath
	f.optCount = len(opts)

	if f.mockRemover != nil {
		return f.mockRemover
	}
	return &mockRemover{}
}

func (f *mockRemoverFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *mockRemoverFactory) Project() config.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// ---------------------------------------------------------------------------
// Mock PublisherFactory
// ---------------------------------------------------------------------------

type mockPublisher struct {
	PublishFunc func(ctx context.Context, localPath string) (string, error)
}

func (m *mockPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, localPath)
	}
	return "https://example.com/" + localPath, nil
}

type mockPublisherFactory struct {
	NewPublisherFunc func(ctx context.Context, cfg storage.S3Config) (Publisher, error)

	mu    sync.Mutex
	calls int
	cfg   storage.S3Config
}

func (f *mockPublisherFactory) NewPublisher(ctx context.Context, cfg storage.S3Config) (Publisher, error) {
	f.mu.Lock()
	f.calls++
	f.cfg = cfg
	f.mu.Unlock()

	if f.NewPublisherFunc != nil {
		return f.NewPublisherFunc(ctx, cfg)
	}
	return &mockPublisher{}, nil
}

func (f *mockPublisherFactory) Config() storage.S3Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// Compile-time interface verification.
var (
	_ FFmpegResolver   = (*mockFFmpegResolver)(nil)
	_ Settings         = (*mockSettings)(nil)
	_ RemoverFactory   = (*mockRemoverFactory)(nil)
	_ Remover          = (*mockRemover)(nil)
	_ PublisherFactory = (*mockPublisherFactory)(nil)
	_ Publisher        = (*mockPublisher)(nil)
)
