package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix namespaces environment overrides.
	EnvPrefix = "PDFQA_"
)

// Load builds the configuration from defaults, the optional YAML file at
// configPath, and PDFQA_* environment variables, in increasing precedence.
//
// Environment variables map onto keys by splitting on the first underscore
// after the prefix:
//
//	PDFQA_LLM_MODEL            -> llm.model
//	PDFQA_PIPELINE_CALL_TIMEOUT -> pipeline.call_timeout
//	PDFQA_VECTORSTORE_QDRANT_HOST -> vectorstore.qdrant.host
//
// OPENAI_API_KEY and SLACK_BOT_TOKEN are honoured when the corresponding
// keys are still empty after loading.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyWellKnownEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey turns PDFQA_SECTION_FIELD_NAME into section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	if section == "vectorstore" && strings.HasPrefix(field, "qdrant_") {
		return section + ".qdrant." + strings.TrimPrefix(field, "qdrant_")
	}
	return section + "." + field
}

// applyWellKnownEnv fills credentials from the conventional variable names.
func applyWellKnownEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if !cfg.LLM.APIKey.IsSet() {
			cfg.LLM.APIKey = Secret(key)
		}
		if !cfg.Embeddings.APIKey.IsSet() {
			cfg.Embeddings.APIKey = Secret(key)
		}
	}
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" && !cfg.Notify.Token.IsSet() {
		cfg.Notify.Token = Secret(token)
	}
}

// readConfigFile opens the file once and validates the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties rejects oversized or group/world writable files.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
