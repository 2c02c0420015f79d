package cli

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/alnah/silence-remover/internal/config"
	"github.com/alnah/silence-remover/internal/ffmpeg"
	"github.com/alnah/silence-remover/internal/job"
	"github.com/alnah/silence-remover/internal/remover"
	"github.com/alnah/silence-remover/internal/storage"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdout    io.Writer
	Stderr    io.Writer
	LookupEnv func(string) (string, bool)
	NumCPU    func() int
	Version   string

	// Factories for domain objects
	FFmpegResolver   FFmpegResolver
	Settings         Settings
	RemoverFactory   RemoverFactory
	PublisherFactory PublisherFactory
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve(ctx context.Context, explicit string) (string, error)
	CheckVersion(ctx context.Context, ffmpegPath string)
}

// Settings reads and writes the persistent settings file.
type Settings interface {
	Load() (config.Overrides, error)
	Set(key, value string) error
	Get(key string) (string, error)
	List() (map[string]string, error)
	Path() string
}

// Remover runs the silence removal pipeline for one project.
type Remover interface {
	Analyze(ctx context.Context) (remover.Analysis, error)
	Process(ctx context.Context, listeners ...job.ProgressListener) (remover.Result, error)
}

// RemoverFactory creates a Remover for a resolved project.
type RemoverFactory interface {
	NewRemover(cfg config.Project, ffmpegPath string, opts ...remover.Option) Remover
}

// Publisher uploads a finished output.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// PublisherFactory creates the object storage publisher.
type PublisherFactory interface {
	NewPublisher(ctx context.Context, cfg storage.S3Config) (Publisher, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithLookupEnv sets the environment variable lookup.
func WithLookupEnv(fn func(string) (string, bool)) EnvOption {
	return func(e *Env) {
		e.LookupEnv = fn
	}
}

// WithNumCPU sets the CPU count used for thread defaults.
func WithNumCPU(fn func() int) EnvOption {
	return func(e *Env) {
		e.NumCPU = fn
	}
}

// WithVersion sets the version reported in metrics.
func WithVersion(v string) EnvOption {
	return func(e *Env) {
		e.Version = v
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// WithSettings sets the settings store.
func WithSettings(s Settings) EnvOption {
	return func(e *Env) {
		e.Settings = s
	}
}

// WithRemoverFactory sets the remover factory.
func WithRemoverFactory(f RemoverFactory) EnvOption {
	return func(e *Env) {
		e.RemoverFactory = f
	}
}

// WithPublisherFactory sets the publisher factory.
func WithPublisherFactory(f PublisherFactory) EnvOption {
	return func(e *Env) {
		e.PublisherFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
		LookupEnv:        os.LookupEnv,
		NumCPU:           runtime.NumCPU,
		Version:          "dev",
		FFmpegResolver:   defaultFFmpegResolver{},
		Settings:         &defaultSettings{},
		RemoverFactory:   defaultRemoverFactory{},
		PublisherFactory: defaultPublisherFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultFFmpegResolver implements FFmpegResolver using the ffmpeg package.
type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve(ctx context.Context, explicit string) (string, error) {
	return ffmpeg.Resolve(ctx, explicit)
}

func (defaultFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	ffmpeg.CheckVersion(ctx, ffmpegPath)
}

// defaultSettings implements Settings with the user's settings file. The
// file location is resolved on first use.
type defaultSettings struct {
	store *config.Store
	err   error
}

func (s *defaultSettings) get() (*config.Store, error) {
	if s.store == nil && s.err == nil {
		s.store, s.err = config.DefaultStore()
	}
	return s.store, s.err
}

func (s *defaultSettings) Load() (config.Overrides, error) {
	st, err := s.get()
	if err != nil {
		return config.Overrides{}, err
	}
	return st.Load()
}

func (s *defaultSettings) Set(key, value string) error {
	st, err := s.get()
	if err != nil {
		return err
	}
	return st.Set(key, value)
}

func (s *defaultSettings) Get(key string) (string, error) {
	st, err := s.get()
	if err != nil {
		return "", err
	}
	return st.Get(key)
}

func (s *defaultSettings) List() (map[string]string, error) {
	st, err := s.get()
	if err != nil {
		return nil, err
	}
	return st.List()
}

func (s *defaultSettings) Path() string {
	st, err := s.get()
	if err != nil {
		return ""
	}
	return st.Path()
}

// defaultRemoverFactory implements RemoverFactory using the remover package.
type defaultRemoverFactory struct{}

func (defaultRemoverFactory) NewRemover(cfg config.Project, ffmpegPath string, opts ...remover.Option) Remover {
	return remover.New(cfg, ffmpegPath, opts...)
}

// defaultPublisherFactory implements PublisherFactory with S3.
type defaultPublisherFactory struct{}

func (defaultPublisherFactory) NewPublisher(ctx context.Context, cfg storage.S3Config) (Publisher, error) {
	p, err := storage.NewPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Compile-time interface verification.
var (
	_ FFmpegResolver   = defaultFFmpegResolver{}
	_ Settings         = (*defaultSettings)(nil)
	_ RemoverFactory   = defaultRemoverFactory{}
	_ PublisherFactory = defaultPublisherFactory{}
	_ Remover          = (*remover.Remover)(nil)
	_ Publisher        = (*storage.Publisher)(nil)
)
