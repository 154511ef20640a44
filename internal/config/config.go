// Package config provides configuration management for Vestige.
// It loads settings from environment variables with the VESTIGE_ prefix,
// applies the baseline defaults, and optionally overlays a YAML file
// that is watched for changes so a running process can pick up threshold
// tuning without a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the retrieval and consolidation pipeline.
type Config struct {
	DBPath    string `yaml:"db_path"`
	AuthToken string `yaml:"auth_token"`

	EmbeddingModel string `yaml:"embedding_model"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
	CompressedDim  int    `yaml:"compressed_dim"`

	RRFK          int     `yaml:"rrf_k"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	VectorWeight  float64 `yaml:"vector_weight"`

	TemporalHalfLifeDays float64 `yaml:"temporal_half_life_days"`
	DecayGraceHours      float64 `yaml:"decay_grace_hours"`
	PruneThreshold       float64 `yaml:"prune_threshold"`
	PromoteThreshold     float64 `yaml:"promote_threshold"`

	STCBackwardHours float64 `yaml:"stc_backward_h"`
	STCForwardHours  float64 `yaml:"stc_forward_h"`
	TagLifetimeHours float64 `yaml:"tag_lifetime_h"`

	PRPThreshold     float64 `yaml:"prp_threshold"`
	SuppressionHours float64 `yaml:"suppression_h"`

	SessionTimeoutMS int  `yaml:"session_timeout_ms"`
	Debug            bool `yaml:"debug"`
}

// Defaults returns the baseline configuration, useful for
// callers that want to construct a Config without touching the
// environment (e.g. tests, or a server embedded as a library).
func Defaults() Config {
	return defaults()
}

// defaults returns the baseline configuration before env vars or a YAML
// overlay are applied.
func defaults() Config {
	return Config{
		DBPath:               "vestige.db",
		EmbeddingModel:       "nomic-embed-text",
		EmbeddingDim:         768,
		CompressedDim:        128,
		RRFK:                 60,
		KeywordWeight:        0.5,
		VectorWeight:         0.5,
		TemporalHalfLifeDays: 14,
		DecayGraceHours:      24,
		PruneThreshold:       0.05,
		PromoteThreshold:     0.8,
		STCBackwardHours:     9,
		STCForwardHours:      2,
		TagLifetimeHours:     12,
		PRPThreshold:         0.7,
		SuppressionHours:     24,
		SessionTimeoutMS:     1800000,
		Debug:                false,
	}
}

// Load builds a Config from defaults, an optional YAML file (path taken
// from VESTIGE_CONFIG_FILE, if set and present), then VESTIGE_-prefixed
// environment variables, applied in that order so env vars win.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("VESTIGE_CONFIG_FILE"); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	overlayEnv(&cfg)
	return &cfg, nil
}

func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func overlayEnv(cfg *Config) {
	cfg.DBPath = getEnv("VESTIGE_DB_PATH", cfg.DBPath)
	cfg.AuthToken = getEnv("VESTIGE_AUTH_TOKEN", cfg.AuthToken)
	cfg.EmbeddingModel = getEnv("VESTIGE_EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDim = getEnvInt("VESTIGE_EMBEDDING_DIM", cfg.EmbeddingDim)
	cfg.CompressedDim = getEnvInt("VESTIGE_COMPRESSED_DIM", cfg.CompressedDim)
	cfg.RRFK = getEnvInt("VESTIGE_RRF_K", cfg.RRFK)
	cfg.KeywordWeight = getEnvFloat("VESTIGE_KEYWORD_WEIGHT", cfg.KeywordWeight)
	cfg.VectorWeight = getEnvFloat("VESTIGE_VECTOR_WEIGHT", cfg.VectorWeight)
	cfg.TemporalHalfLifeDays = getEnvFloat("VESTIGE_TEMPORAL_HALF_LIFE_DAYS", cfg.TemporalHalfLifeDays)
	cfg.DecayGraceHours = getEnvFloat("VESTIGE_DECAY_GRACE_HOURS", cfg.DecayGraceHours)
	cfg.PruneThreshold = getEnvFloat("VESTIGE_PRUNE_THRESHOLD", cfg.PruneThreshold)
	cfg.PromoteThreshold = getEnvFloat("VESTIGE_PROMOTE_THRESHOLD", cfg.PromoteThreshold)
	cfg.STCBackwardHours = getEnvFloat("VESTIGE_STC_BACKWARD_H", cfg.STCBackwardHours)
	cfg.STCForwardHours = getEnvFloat("VESTIGE_STC_FORWARD_H", cfg.STCForwardHours)
	cfg.TagLifetimeHours = getEnvFloat("VESTIGE_TAG_LIFETIME_H", cfg.TagLifetimeHours)
	cfg.PRPThreshold = getEnvFloat("VESTIGE_PRP_THRESHOLD", cfg.PRPThreshold)
	cfg.SuppressionHours = getEnvFloat("VESTIGE_SUPPRESSION_H", cfg.SuppressionHours)
	cfg.SessionTimeoutMS = getEnvInt("VESTIGE_SESSION_TIMEOUT_MS", cfg.SessionTimeoutMS)
	cfg.Debug = getEnvBool("VESTIGE_DEBUG", cfg.Debug)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// Watcher overlays a YAML config file onto a live Config whenever the file
// changes on disk, guarded by a mutex since reads happen from request
// goroutines. Snapshot returns a copy safe for the caller to read.
type Watcher struct {
	mu      sync.RWMutex
	cfg     Config
	path    string
	watcher *fsnotify.Watcher
}

// WatchFile starts watching path for changes, applying the current env
// overlay on top of each reload so env vars keep precedence. The returned
// Watcher must be closed by the caller.
func WatchFile(base Config, path string) (*Watcher, error) {
	w := &Watcher{cfg: base, path: path}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}
	w.watcher = fw

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			time.Sleep(50 * time.Millisecond) // let the writer finish flushing
			w.reload()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg := w.cfg
	if err := overlayYAML(&cfg, w.path); err != nil {
		return
	}
	overlayEnv(&cfg)
	w.cfg = cfg
}

// Snapshot returns a copy of the current configuration.
func (w *Watcher) Snapshot() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Close stops the underlying file watch.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
