package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"media-curator/internal/filesystem"
	"media-curator/internal/logging"
	"media-curator/internal/trashpath"
)

// EnvPrefix prefixes every environment override, e.g. CURATOR_MEDIA_DIR.
const EnvPrefix = "CURATOR"

// DefaultConfigName is the file looked up when no path is given.
const DefaultConfigName = "curator.yaml"

// RepairConfig tunes the date-taken repairer.
type RepairConfig struct {
	BatchSize         int     `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=1,lte=50"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"gte=1"`
}

// Config holds all application configuration
type Config struct {
	MediaDir         string        `mapstructure:"media_dir" yaml:"media_dir" validate:"required"`
	DatabaseDir      string        `mapstructure:"database_dir" yaml:"database_dir" validate:"required"`
	CacheDir         string        `mapstructure:"cache_dir" yaml:"cache_dir" validate:"required"`
	StagingDir       string        `mapstructure:"staging_dir" yaml:"staging_dir"`
	RecycleBinPrefix string        `mapstructure:"recycle_bin_prefix" yaml:"recycle_bin_prefix" validate:"required,excludesall=/\\"`
	Port             string        `mapstructure:"port" yaml:"port" validate:"required,numeric"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	LogLevel         string        `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	KeepLastModified bool          `mapstructure:"keep_last_modified" yaml:"keep_last_modified"`
	IndexInterval    time.Duration `mapstructure:"index_interval" yaml:"index_interval" validate:"gte=0"`
	MmapDisabled     bool          `mapstructure:"db_mmap_disabled" yaml:"db_mmap_disabled"`
	MaxImagePixels   int           `mapstructure:"max_image_pixels" yaml:"max_image_pixels" validate:"gte=0"`
	Workers          int           `mapstructure:"workers" yaml:"workers" validate:"gte=0"`

	// MemoryLimit is the container limit in bytes. GOMEMLIMIT wins when set.
	MemoryLimit int64   `mapstructure:"memory_limit" yaml:"memory_limit" validate:"gte=0"`
	MemoryRatio float64 `mapstructure:"memory_ratio" yaml:"memory_ratio" validate:"gt=0,lte=1"`

	// RestrictedRoots can only be written through a granted tree.
	RestrictedRoots []string `mapstructure:"restricted_roots" yaml:"restricted_roots"`
	GrantedRoots    []string `mapstructure:"granted_roots" yaml:"granted_roots"`

	Repair RepairConfig           `mapstructure:"repair" yaml:"repair"`
	Retry  filesystem.RetryConfig `mapstructure:"retry" yaml:"retry"`

	// Derived paths
	DatabasePath     string `mapstructure:"-" yaml:"-"`
	ContentIndexPath string `mapstructure:"-" yaml:"-"`
	ThumbnailDir     string `mapstructure:"-" yaml:"-"`

	// ThumbnailsEnabled is set when the thumbnail cache is writable.
	ThumbnailsEnabled bool `mapstructure:"-" yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MediaDir:         "/media",
		DatabaseDir:      "/database",
		CacheDir:         "/cache",
		RecycleBinPrefix: trashpath.DefaultPrefix,
		Port:             "8080",
		MetricsEnabled:   true,
		LogLevel:         "info",
		KeepLastModified: true,
		IndexInterval:    30 * time.Minute,
		MemoryRatio:      0.85,
		Repair: RepairConfig{
			BatchSize:         50,
			RequestsPerSecond: 5,
			Burst:             1,
		},
		Retry: filesystem.DefaultRetryConfig(),
	}
}

var validate = validator.New()

// setDefaults registers every key so environment overrides reach them.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("media_dir", def.MediaDir)
	v.SetDefault("database_dir", def.DatabaseDir)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("staging_dir", def.StagingDir)
	v.SetDefault("recycle_bin_prefix", def.RecycleBinPrefix)
	v.SetDefault("port", def.Port)
	v.SetDefault("metrics_enabled", def.MetricsEnabled)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("keep_last_modified", def.KeepLastModified)
	v.SetDefault("index_interval", def.IndexInterval)
	v.SetDefault("db_mmap_disabled", def.MmapDisabled)
	v.SetDefault("max_image_pixels", def.MaxImagePixels)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("memory_limit", def.MemoryLimit)
	v.SetDefault("memory_ratio", def.MemoryRatio)
	v.SetDefault("restricted_roots", def.RestrictedRoots)
	v.SetDefault("granted_roots", def.GrantedRoots)
	v.SetDefault("repair.batch_size", def.Repair.BatchSize)
	v.SetDefault("repair.requests_per_second", def.Repair.RequestsPerSecond)
	v.SetDefault("repair.burst", def.Repair.Burst)
	v.SetDefault("retry.max_retries", def.Retry.MaxRetries)
	v.SetDefault("retry.initial_backoff", def.Retry.InitialBackoff)
	v.SetDefault("retry.max_backoff", def.Retry.MaxBackoff)
}

// Load reads configuration from an optional .env file, the YAML file at
// path (or DefaultConfigName in the working directory when path is empty)
// and CURATOR_* environment variables, in increasing precedence. It does
// not touch the filesystem beyond reading.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(DefaultConfigName, filepath.Ext(DefaultConfigName)))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// resolve makes directories absolute and fills in derived paths.
func (c *Config) resolve() error {
	for _, p := range []*string{&c.MediaDir, &c.DatabaseDir, &c.CacheDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", *p, err)
		}
		*p = abs
	}
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(c.MediaDir, ".recycle_bin")
	}
	abs, err := filepath.Abs(c.StagingDir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", c.StagingDir, err)
	}
	c.StagingDir = abs

	c.RestrictedRoots = cleanAll(c.RestrictedRoots)
	c.GrantedRoots = cleanAll(c.GrantedRoots)

	c.DatabasePath = filepath.Join(c.DatabaseDir, "curator.db")
	c.ContentIndexPath = filepath.Join(c.DatabaseDir, "content-index.db")
	c.ThumbnailDir = filepath.Join(c.CacheDir, "thumbnails")
	return nil
}

func cleanAll(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}

// Validate checks struct tags and the rules that span fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.StagingDir == cfg.MediaDir {
		return fmt.Errorf("staging_dir must differ from media_dir")
	}
	if cfg.Retry.InitialBackoff > cfg.Retry.MaxBackoff {
		return fmt.Errorf("retry.initial_backoff (%v) exceeds retry.max_backoff (%v)",
			cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff)
	}
	for _, g := range cfg.GrantedRoots {
		if !filepath.IsAbs(g) {
			return fmt.Errorf("granted_roots: %q is not absolute", g)
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// WriteDefault writes the built-in configuration as YAML. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, os.ErrExist)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Info("Wrote default configuration to %s", path)
	return nil
}

// LoadConfig loads the configuration, applies its log level, logs it and
// prepares the directories the service needs. The database and staging
// directories must be writable; the thumbnail cache is optional.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logging.SetLevel(level)
	}

	printBanner()
	logSystemInfo()
	logConfig(cfg)

	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Prepare creates and checks the directories named by the configuration.
func (c *Config) Prepare() error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(c.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	for _, dir := range []struct{ path, name string }{
		{c.DatabaseDir, "database"},
		{c.StagingDir, "staging"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	c.ThumbnailsEnabled = setupOptionalDir(c.ThumbnailDir, "thumbnails")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:          ENABLED (required)")
	logging.Info("    Recycle bin:       ENABLED (required)")
	logging.Info("    Thumbnail cache:   %s", enabledString(c.ThumbnailsEnabled))
	logging.Info("    Metrics:           %s", enabledString(c.MetricsEnabled))
	return nil
}

func logConfig(c *Config) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  MEDIA_DIR:           %s", c.MediaDir)
	logging.Info("  DATABASE_DIR:        %s", c.DatabaseDir)
	logging.Info("  CACHE_DIR:           %s", c.CacheDir)
	logging.Info("  STAGING_DIR:         %s", c.StagingDir)
	logging.Info("  RECYCLE_BIN_PREFIX:  %s", c.RecycleBinPrefix)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  KEEP_LAST_MODIFIED:  %v", c.KeepLastModified)
	logging.Info("  INDEX_INTERVAL:      %v", c.IndexInterval)
	logging.Info("  DB_MMAP_DISABLED:    %v", c.MmapDisabled)
	logging.Info("  RESTRICTED_ROOTS:    %v", c.RestrictedRoots)
	logging.Info("  GRANTED_ROOTS:       %v", c.GrantedRoots)
	if c.MemoryLimit > 0 {
		logging.Info("  MEMORY_LIMIT:        %d (ratio %.2f)", c.MemoryLimit, c.MemoryRatio)
	}
	logging.Info("  REPAIR:              batch=%d rps=%.2f burst=%d",
		c.Repair.BatchSize, c.Repair.RequestsPerSecond, c.Repair.Burst)
	logging.Info("  RETRY:               max=%d initial=%v max_backoff=%v",
		c.Retry.MaxRetries, c.Retry.InitialBackoff, c.Retry.MaxBackoff)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}
