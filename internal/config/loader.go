package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// envConfigDir names a directory holding config.yaml when no path is given.
	envConfigDir      = "BABBLE_CONFIG_DEFAULT_PATH"
	envPrefix         = "BABBLE"
	defaultConfigName = "config.yaml"
)

// Load resolves the babble configuration and reports the file it used. A
// missing file is seeded with Default() so operators get an editable
// template on first run. Nested keys map to env vars with dots turned into
// underscores: store.driver is BABBLE_STORE_DRIVER, max_clients is
// BABBLE_MAX_CLIENTS. Env vars win over the file; command-line flags are
// applied afterwards by the caller through UpdateFrom.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := resolveConfigPath(explicitPath)
	v.SetConfigFile(path)
	if err := readOrSeed(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, path, nil
}

// readOrSeed reads path into v. When the file does not exist it writes the
// defaults there; failing to seed is logged and the server runs on defaults
// and env vars.
func readOrSeed(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := writeDefaultConfig(path, cfg); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("cannot seed config file, using defaults")
		return nil
	}
	logger.Info().Str("path", path).Msg("seeded config file with defaults")
	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("seeded config file unreadable")
	}
	return nil
}

// setDefaults registers every key with viper; AutomaticEnv only consults
// keys it already knows.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("executors", cfg.Executors)
	v.SetDefault("answer_senders", cfg.AnswerSenders)
	v.SetDefault("queue_capacity", cfg.QueueCapacity)
	v.SetDefault("max_clients", cfg.MaxClients)
	v.SetDefault("timeline_max", cfg.TimelineMax)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.path", cfg.Store.Path)
}

// resolveConfigPath picks the --config flag, then $BABBLE_CONFIG_DEFAULT_PATH,
// then the working directory.
func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return filepath.Join(dir, defaultConfigName)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, defaultConfigName)
	}
	return defaultConfigName
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
