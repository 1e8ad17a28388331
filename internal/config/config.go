// Package config implements the ambient defaults -> merge -> validate
// pipeline every Pardon binary uses to turn a YAML file plus environment
// overrides into a validated settings struct.
//
// Grounded on the teacher's runtime/config.go InitializeConfig: struct-tag
// defaults applied first, then raw values merged in, then the whole
// struct validated - generalized from plugin-config decoding to the
// cmd/ binaries' own settings.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Settings is the configuration shared by cmd/pardon, cmd/pardon-runner,
// and cmd/pardon-server: where the collection lives, how outbound
// requests are transported, and where history is persisted.
type Settings struct {
	Layers  []string        `yaml:"layers" default:"." validate:"required,min=1"`
	HTTP    HTTPSettings    `yaml:"http"`
	History HistorySettings `yaml:"history"`
	Server  ServerSettings  `yaml:"server"`
}

// HTTPSettings mirrors internal/transport.Config's shape in struct-tag
// form so it can be loaded from a YAML file alongside the rest of a
// binary's settings.
type HTTPSettings struct {
	TimeoutSeconds int  `yaml:"timeoutSeconds" default:"30" validate:"min=1"`
	MaxRetries     int  `yaml:"maxRetries" default:"3" validate:"min=0"`
	RetryWaitMS    int  `yaml:"retryWaitMs" default:"100" validate:"min=0"`
	Debug          bool `yaml:"debug"`
}

// HistorySettings configures internal/history.Store's connection.
type HistorySettings struct {
	DSN          string `yaml:"dsn" default:"pardon-history.db"`
	MaxOpenConns int    `yaml:"maxOpenConns" default:"1" validate:"min=0"`
}

// ServerSettings configures cmd/pardon-server's listener.
type ServerSettings struct {
	Port string `yaml:"port" default:":8080" validate:"required"`
}

// Load reads path (if non-empty and present) as YAML into a Settings,
// applies struct-tag defaults for anything unset, merges in override
// (typically flag/environment-derived values), and validates the
// result, following the teacher's defaults -> merge -> validate order.
func Load(path string, override map[string]any) (*Settings, error) {
	cfg := &Settings{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: apply defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if len(override) > 0 {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "yaml",
			Result:  cfg,
		})
		if err != nil {
			return nil, fmt.Errorf("config: build decoder: %w", err)
		}
		if err := decoder.Decode(override); err != nil {
			return nil, fmt.Errorf("config: merge overrides: %w", err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
