package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"bus-tracker/internal/shared/models"
)

// ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func LoadConfig(filename string) (*models.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse expands environment references, decodes and validates a config document.
func Parse(data []byte) (*models.Config, error) {
	expanded := envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := envPattern.FindSubmatch(match)
		if v, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(v)
		}
		return groups[2]
	})

	cfg := &models.Config{}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.Services.TrackingService == "" {
		cfg.Services.TrackingService = "3010"
	}
	if cfg.Services.NotificationService == "" {
		cfg.Services.NotificationService = "3011"
	}
	if cfg.Tracking.MinDistanceMeters == 0 {
		cfg.Tracking.MinDistanceMeters = 20
	}
	if cfg.Tracking.MinInterval == 0 {
		cfg.Tracking.MinInterval = 4 * time.Second
	}
	if cfg.Tracking.ArrivalRadiusMeters == 0 {
		cfg.Tracking.ArrivalRadiusMeters = 140
	}
	if cfg.Tracking.ReapInterval == 0 {
		cfg.Tracking.ReapInterval = time.Minute
	}
	if cfg.Push.Channel == "" {
		cfg.Push.Channel = "tracking-alerts"
	}
	if cfg.Push.BatchSize == 0 {
		cfg.Push.BatchSize = 500
	}
}
