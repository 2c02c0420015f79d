package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Notes:
// - White-box testing (package config) to reach parseLogLevel.
// - Store tests use t.TempDir(), never the real user config directory.
// - Tests using t.Setenv are NOT parallel.
// - LoadEnv takes a lookup function, so environment tests use a map and run
//   in parallel.

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "nested", settingsFile))
}

// ---------------------------------------------------------------------------
// Resolve
// ---------------------------------------------------------------------------

func TestResolve_Defaults(t *testing.T) {
	t.Parallel()

	p, err := Resolve("talk.mp4", "", 8)
	require.NoError(t, err)

	assert.Equal(t, "talk.mp4", p.InputFile)
	assert.Equal(t, "talk-trimmed.mp4", p.OutputFile)
	assert.Equal(t, DefaultMinSegmentLength, p.MinSegmentLength)
	assert.Equal(t, DefaultNoiseToleranceDB, p.NoiseToleranceDB)
	assert.Equal(t, DefaultMaxVolume, p.MaxVolume)
	assert.Equal(t, DefaultPadding, p.Padding)
	assert.Equal(t, DefaultSegmentsPerInstance, p.SegmentsPerInstance)
	assert.Equal(t, 4, p.MaxThreads)
	assert.Equal(t, 2, p.ThreadsPerSegment)
	assert.Equal(t, 2, p.MaxWorkers())
	assert.Equal(t, os.TempDir(), p.TempDir)
	assert.Equal(t, "info", p.LogLevel)
	assert.Equal(t, "text", p.LogFormat)
	assert.False(t, p.AudioOnly)
	assert.False(t, p.KeepTemp)
}

func TestResolve_SingleCPU(t *testing.T) {
	t.Parallel()

	p, err := Resolve("a.wav", "b.wav", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.MaxThreads)
	assert.Equal(t, 1, p.ThreadsPerSegment)
	assert.Equal(t, 1, p.MaxWorkers())
}

func TestResolve_LaterLayersWin(t *testing.T) {
	t.Parallel()

	file := Overrides{Padding: Ptr(0.5), MaxThreads: Ptr(6), LogFormat: Ptr("json")}
	env := Overrides{Padding: Ptr(0.1)}
	flags := Overrides{MaxThreads: Ptr(2), AudioOnly: Ptr(true)}

	p, err := Resolve("in.mkv", "out.mkv", 16, file, env, flags)
	require.NoError(t, err)

	assert.Equal(t, 0.1, p.Padding)
	assert.Equal(t, 2, p.MaxThreads)
	assert.Equal(t, 1, p.ThreadsPerSegment)
	assert.Equal(t, "json", p.LogFormat)
	assert.True(t, p.AudioOnly)
}

func TestResolve_ZeroThreadsMeansAuto(t *testing.T) {
	t.Parallel()

	p, err := Resolve("in.mp4", "out.mp4", 12, Overrides{MaxThreads: Ptr(0), ThreadsPerSegment: Ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, 6, p.MaxThreads)
	assert.Equal(t, 3, p.ThreadsPerSegment)
}

func TestResolve_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		output string
		over   Overrides
		want   string
	}{
		{
			name:   "missing input",
			output: "out.mp4",
			want:   "input is required",
		},
		{
			name:   "output equals input",
			input:  "same.mp4",
			output: "same.mp4",
			want:   "output must differ from input",
		},
		{
			name:   "threads per segment above max threads",
			input:  "in.mp4",
			output: "out.mp4",
			over:   Overrides{MaxThreads: Ptr(2), ThreadsPerSegment: Ptr(4)},
			want:   "threads-per-segment must not exceed max-threads",
		},
		{
			name:   "bucket without region",
			input:  "in.mp4",
			output: "out.mp4",
			over:   Overrides{S3Bucket: Ptr("media")},
			want:   "s3-region is required with s3-bucket",
		},
		{
			name:   "unknown log format",
			input:  "in.mp4",
			output: "out.mp4",
			over:   Overrides{LogFormat: Ptr("xml")},
			want:   "log-format must be one of",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Resolve(tc.input, tc.output, 4, tc.over)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Overrides
// ---------------------------------------------------------------------------

func TestOverrides_Merge(t *testing.T) {
	t.Parallel()

	base := Overrides{Padding: Ptr(0.5), KeepTemp: Ptr(true)}
	got := base.Merge(Overrides{Padding: Ptr(0.0)})

	require.NotNil(t, got.Padding)
	assert.Equal(t, 0.0, *got.Padding)
	require.NotNil(t, got.KeepTemp)
	assert.True(t, *got.KeepTemp)
	assert.Equal(t, 0.5, *base.Padding, "receiver must not change")
}

func TestOverrides_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		over    Overrides
		wantErr bool
	}{
		{name: "empty", over: Overrides{}},
		{name: "valid values", over: Overrides{MaxVolume: Ptr(0.5), NoiseToleranceDB: Ptr(-30.0)}},
		{name: "max volume above one", over: Overrides{MaxVolume: Ptr(1.5)}, wantErr: true},
		{name: "positive noise tolerance", over: Overrides{NoiseToleranceDB: Ptr(3.0)}, wantErr: true},
		{name: "negative padding", over: Overrides{Padding: Ptr(-0.1)}, wantErr: true},
		{name: "zero segments per instance", over: Overrides{SegmentsPerInstance: Ptr(0)}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.over.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOverrides_Values(t *testing.T) {
	t.Parallel()

	got, err := Overrides{
		NoiseToleranceDB: Ptr(-35.0),
		KeepTemp:         Ptr(false),
		S3Prefix:         Ptr("talks/"),
	}.Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"noise-tolerance": "-35",
		"keep-temp":       "false",
		"s3-prefix":       "talks/",
	}, got)

	empty, err := Overrides{}.Values()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// ---------------------------------------------------------------------------
// LoadEnv
// ---------------------------------------------------------------------------

func TestLoadEnv(t *testing.T) {
	t.Parallel()

	o, err := LoadEnv(context.Background(), mapLookup(map[string]string{
		"SILENCE_REMOVER_PADDING":    "0.7",
		"SILENCE_REMOVER_AUDIO_ONLY": "true",
		"SILENCE_REMOVER_S3_BUCKET":  "media",
		"PADDING":                    "9",
	}))
	require.NoError(t, err)

	require.NotNil(t, o.Padding)
	assert.Equal(t, 0.7, *o.Padding)
	require.NotNil(t, o.AudioOnly)
	assert.True(t, *o.AudioOnly)
	require.NotNil(t, o.S3Bucket)
	assert.Equal(t, "media", *o.S3Bucket)
	assert.Nil(t, o.MaxThreads, "unset variables stay nil")
	assert.Nil(t, o.LogLevel)
}

func TestLoadEnv_Errors(t *testing.T) {
	t.Parallel()

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()

		_, err := LoadEnv(context.Background(), mapLookup(map[string]string{
			"SILENCE_REMOVER_MAX_VOLUME": "2",
		}))
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("unparsable", func(t *testing.T) {
		t.Parallel()

		_, err := LoadEnv(context.Background(), mapLookup(map[string]string{
			"SILENCE_REMOVER_MAX_THREADS": "many",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "environment")
	})
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	o, err := newTestStore(t).Load()
	require.NoError(t, err)
	assert.Equal(t, Overrides{}, o)
}

func TestStore_SetGetList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Set("padding", "0.35"))
	require.NoError(t, s.Set("audio-only", "true"))
	require.NoError(t, s.Set("log-level", "debug"))
	require.NoError(t, s.Set("padding", "0.25"))

	got, err := s.Get("padding")
	require.NoError(t, err)
	assert.Equal(t, "0.25", got)

	unset, err := s.Get("max-threads")
	require.NoError(t, err)
	assert.Empty(t, unset)

	all, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"padding":    "0.25",
		"audio-only": "true",
		"log-level":  "debug",
	}, all)

	o, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, o.AudioOnly)
	assert.True(t, *o.AudioOnly)
}

func TestStore_SetErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{name: "unknown key", key: "volume", value: "1", wantErr: ErrUnknownKey},
		{name: "wrong type", key: "max-threads", value: "lots", wantErr: ErrInvalid},
		{name: "out of range", key: "max-volume", value: "2", wantErr: ErrInvalid},
		{name: "bad choice", key: "log-format", value: "xml", wantErr: ErrInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			err := s.Set(tc.key, tc.value)
			assert.ErrorIs(t, err, tc.wantErr)

			_, statErr := os.Stat(s.Path())
			assert.ErrorIs(t, statErr, os.ErrNotExist, "nothing is saved on error")
		})
	}
}

func TestStore_GetUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := newTestStore(t).Get("nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestStore_LoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o750))
	require.NoError(t, os.WriteFile(s.Path(), []byte("padding: 0.2\nvolume: 3\n"), 0o600))

	_, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), s.Path())
}

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ffmpeg", Keys[0])
	assert.Contains(t, Keys, "segments-per-instance")
	assert.Contains(t, Keys, "s3-prefix")
	assert.Len(t, Keys, 17)
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func TestDefaultOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "talk.mp4", want: "talk-trimmed.mp4"},
		{input: "/media/rec.final.wav", want: "/media/rec.final-trimmed.wav"},
		{input: "noext", want: "noext-trimmed"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DefaultOutputPath(tc.input))
		})
	}
}

func TestDirAndDefaultStore(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	d, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "silence-remover"), d)

	s, err := DefaultStore()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "silence-remover", "config.yaml"), s.Path())
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "media/in.mp4"), ExpandPath("~/media/in.mp4"))
	assert.Equal(t, "/abs/in.mp4", ExpandPath("/abs/in.mp4"))
	assert.Equal(t, "rel/in.mp4", ExpandPath("rel/in.mp4"))
}

func TestWritableDir(t *testing.T) {
	t.Parallel()

	t.Run("creates missing directory", func(t *testing.T) {
		t.Parallel()

		d := filepath.Join(t.TempDir(), "a", "b")
		require.NoError(t, WritableDir(d))
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("existing directory leaves no scratch file", func(t *testing.T) {
		t.Parallel()

		d := t.TempDir()
		require.NoError(t, WritableDir(d))
		entries, err := os.ReadDir(d)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("regular file", func(t *testing.T) {
		t.Parallel()

		f := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(f, nil, 0o600))
		assert.ErrorIs(t, WritableDir(f), ErrInvalid)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, WritableDir(""), ErrInvalid)
	})
}

// ---------------------------------------------------------------------------
// Logger
// ---------------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("json at debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewLogger("debug", "json", &buf).Debug("sample", "batch", 3)
		assert.Contains(t, buf.String(), `"level":"DEBUG"`)
		assert.Contains(t, buf.String(), `"batch":3`)
	})

	t.Run("text filters below level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger("warn", "text", &buf)
		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "level=WARN")
	})
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"debug":   "DEBUG",
		"INFO":    "INFO",
		"warning": "WARN",
		"warn":    "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in).String(), in)
	}
}
