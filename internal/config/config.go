// Package config provides configuration management for clipframe.
// Values come from built-in defaults, then an optional TOML file, then a
// .env file, then the process environment; later sources win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
)

const (
	// Default values
	DefaultPort           = 8000
	DefaultLogLevel       = "info"
	DefaultDataDir        = ".clipframe"
	DefaultFFmpeg         = "ffmpeg"
	DefaultFFprobe        = "ffprobe"
	DefaultWhisperBinary  = "whisper-cli"
	DefaultWhisperModel   = "ggml-base.bin"
	DefaultMaxUploadBytes = 2 << 30 // 2 GiB
	DefaultOutputTTL      = 24 * time.Hour
	DefaultSweepInterval  = 10 * time.Minute
	DefaultDoctorTTL      = 5 * time.Minute

	// Environment variable names
	EnvConfigFile        = "CLIPFRAME_CONFIG"
	EnvPort              = "CLIPFRAME_PORT"
	EnvLogLevel          = "CLIPFRAME_LOG_LEVEL"
	EnvDataDir           = "CLIPFRAME_DATA_DIR"
	EnvFFmpeg            = "CLIPFRAME_FFMPEG"
	EnvFFprobe           = "CLIPFRAME_FFPROBE"
	EnvWhisperBinary     = "CLIPFRAME_WHISPER_BIN"
	EnvWhisperModel      = "CLIPFRAME_WHISPER_MODEL"
	EnvWhisperThreads    = "CLIPFRAME_WHISPER_THREADS"
	EnvMaxUploadBytes    = "CLIPFRAME_MAX_UPLOAD_BYTES"
	EnvOutputTTL         = "CLIPFRAME_OUTPUT_TTL"
	EnvSweepInterval     = "CLIPFRAME_SWEEP_INTERVAL"
	EnvBurnFailurePolicy = "CLIPFRAME_BURN_FAILURE_POLICY"
	EnvProbeTimeout      = "CLIPFRAME_PROBE_TIMEOUT"
	EnvEncodeTimeout     = "CLIPFRAME_ENCODE_TIMEOUT"
	EnvTranscribeTimeout = "CLIPFRAME_TRANSCRIBE_TIMEOUT"

	// Database filename
	DBFilename = "clipframe.db"
	// Lock file guarding the data directory
	LockFilename = "clipframe.lock"
)

// BurnFailurePolicy decides what happens when captions cannot be produced
// for a burn-in request.
type BurnFailurePolicy string

const (
	// BurnSkip encodes without captions and logs a warning.
	BurnSkip BurnFailurePolicy = "skip"
	// BurnFail fails the request with the transcription error.
	BurnFail BurnFailurePolicy = "fail"
)

// fileConfig mirrors the TOML file layout.
type fileConfig struct {
	Port              int    `toml:"port"`
	LogLevel          string `toml:"log_level"`
	DataDir           string `toml:"data_dir"`
	MaxUploadBytes    int64  `toml:"max_upload_bytes"`
	OutputTTL         string `toml:"output_ttl"`
	SweepInterval     string `toml:"sweep_interval"`
	BurnFailurePolicy string `toml:"burn_failure_policy"`

	Tools struct {
		FFmpeg            string `toml:"ffmpeg"`
		FFprobe           string `toml:"ffprobe"`
		ProbeTimeout      string `toml:"probe_timeout"`
		EncodeTimeout     string `toml:"encode_timeout"`
		TranscribeTimeout string `toml:"transcribe_timeout"`
	} `toml:"tools"`

	Whisper struct {
		Binary  string `toml:"binary"`
		Model   string `toml:"model"`
		Threads int    `toml:"threads"`
	} `toml:"whisper"`
}

// EnvConfig is the resolved configuration.
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	maxUploadBytes int64
	outputTTL      time.Duration
	sweepInterval  time.Duration
	burnPolicy     BurnFailurePolicy

	ffmpeg            string
	ffprobe           string
	probeTimeout      time.Duration
	encodeTimeout     time.Duration
	transcribeTimeout time.Duration

	whisperBinary  string
	whisperModel   string
	whisperThreads int

	source string // TOML file the config was read from, if any
}

// New loads configuration using the file named by CLIPFRAME_CONFIG, if set.
func New() (*EnvConfig, error) {
	return Load("")
}

// Load loads configuration with path as the TOML file. An empty path falls
// back to CLIPFRAME_CONFIG; with neither set no file is read.
func Load(path string) (*EnvConfig, error) {
	// Best effort: a missing .env is normal outside development.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		maxUploadBytes: DefaultMaxUploadBytes,
		outputTTL:      DefaultOutputTTL,
		sweepInterval:  DefaultSweepInterval,
		burnPolicy:     BurnSkip,
		ffmpeg:         DefaultFFmpeg,
		ffprobe:        DefaultFFprobe,
		whisperBinary:  DefaultWhisperBinary,
	}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
		cfg.source = path
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setInt(&c.port, fc.Port)
	setString(&c.logLevel, fc.LogLevel)
	setString(&c.dataDir, fc.DataDir)
	if fc.MaxUploadBytes > 0 {
		c.maxUploadBytes = fc.MaxUploadBytes
	}
	setString((*string)(&c.burnPolicy), fc.BurnFailurePolicy)
	setString(&c.ffmpeg, fc.Tools.FFmpeg)
	setString(&c.ffprobe, fc.Tools.FFprobe)
	setString(&c.whisperBinary, fc.Whisper.Binary)
	setString(&c.whisperModel, fc.Whisper.Model)
	setInt(&c.whisperThreads, fc.Whisper.Threads)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"output_ttl", fc.OutputTTL, &c.outputTTL},
		{"sweep_interval", fc.SweepInterval, &c.sweepInterval},
		{"tools.probe_timeout", fc.Tools.ProbeTimeout, &c.probeTimeout},
		{"tools.encode_timeout", fc.Tools.EncodeTimeout, &c.encodeTimeout},
		{"tools.transcribe_timeout", fc.Tools.TranscribeTimeout, &c.transcribeTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *EnvConfig) applyEnv() error {
	var errs []error
	envInt := func(key string, dst *int) {
		if v, ok := lookupEnv(key); ok {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	envInt64 := func(key string, dst *int64) {
		if v, ok := lookupEnv(key); ok {
			n, err := cast.ToInt64E(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	envDuration := func(key string, dst *time.Duration) {
		if v, ok := lookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				// Bare numbers are seconds.
				secs, cerr := cast.ToInt64E(v)
				if cerr != nil {
					errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
					return
				}
				d = time.Duration(secs) * time.Second
			}
			*dst = d
		}
	}
	envString := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok {
			*dst = cast.ToString(v)
		}
	}

	envInt(EnvPort, &c.port)
	envString(EnvLogLevel, &c.logLevel)
	envString(EnvDataDir, &c.dataDir)
	envString(EnvFFmpeg, &c.ffmpeg)
	envString(EnvFFprobe, &c.ffprobe)
	envString(EnvWhisperBinary, &c.whisperBinary)
	envString(EnvWhisperModel, &c.whisperModel)
	envInt(EnvWhisperThreads, &c.whisperThreads)
	envInt64(EnvMaxUploadBytes, &c.maxUploadBytes)
	envDuration(EnvOutputTTL, &c.outputTTL)
	envDuration(EnvSweepInterval, &c.sweepInterval)
	envString(EnvBurnFailurePolicy, (*string)(&c.burnPolicy))
	envDuration(EnvProbeTimeout, &c.probeTimeout)
	envDuration(EnvEncodeTimeout, &c.encodeTimeout)
	envDuration(EnvTranscribeTimeout, &c.transcribeTimeout)

	return errors.Join(errs...)
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	if c.maxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.outputTTL < 0 || c.sweepInterval < 0 {
		return fmt.Errorf("output ttl and sweep interval must not be negative")
	}
	if c.whisperThreads < 0 {
		return fmt.Errorf("whisper threads must not be negative")
	}
	c.burnPolicy = BurnFailurePolicy(strings.ToLower(string(c.burnPolicy)))
	if c.burnPolicy != BurnSkip && c.burnPolicy != BurnFail {
		return fmt.Errorf("invalid burn failure policy %q: must be skip or fail", c.burnPolicy)
	}
	if strings.TrimSpace(c.dataDir) == "" {
		return fmt.Errorf("data dir is required")
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LockPath returns the path of the data directory lock file
func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.dataDir, LockFilename)
}

// ScratchDir holds per-request work directories for transcription
func (c *EnvConfig) ScratchDir() string {
	return filepath.Join(c.dataDir, "scratch")
}

func (c *EnvConfig) MaxUploadBytes() int64 {
	return c.maxUploadBytes
}

// OutputTTL is how long finished outputs wait for a confirmed download
// before the sweeper evicts them. 0 disables eviction.
func (c *EnvConfig) OutputTTL() time.Duration {
	return c.outputTTL
}

func (c *EnvConfig) SweepInterval() time.Duration {
	return c.sweepInterval
}

func (c *EnvConfig) BurnFailurePolicy() BurnFailurePolicy {
	return c.burnPolicy
}

func (c *EnvConfig) FFmpeg() string {
	return c.ffmpeg
}

func (c *EnvConfig) FFprobe() string {
	return c.ffprobe
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return c.probeTimeout
}

func (c *EnvConfig) EncodeTimeout() time.Duration {
	return c.encodeTimeout
}

func (c *EnvConfig) TranscribeTimeout() time.Duration {
	return c.transcribeTimeout
}

func (c *EnvConfig) WhisperBinary() string {
	return c.whisperBinary
}

// WhisperModel returns the GGML model path, by default inside the data dir
func (c *EnvConfig) WhisperModel() string {
	if c.whisperModel != "" {
		return c.whisperModel
	}
	return filepath.Join(c.dataDir, "models", DefaultWhisperModel)
}

func (c *EnvConfig) WhisperThreads() int {
	return c.whisperThreads
}

func (c *EnvConfig) DoctorTTL() time.Duration {
	return DefaultDoctorTTL
}

// Source returns the TOML file the configuration was read from, or "".
func (c *EnvConfig) Source() string {
	return c.source
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
