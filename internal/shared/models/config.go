package models

import "time"

type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     string `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" validate:"required"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     string `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
}

type ServicesConfig struct {
	TrackingService     string `yaml:"tracking_service"`
	NotificationService string `yaml:"notification_service"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=8"`
}

// TrackingConfig holds the admission and progress thresholds.
type TrackingConfig struct {
	MinDistanceMeters   float64       `yaml:"min_distance_meters" validate:"gte=0"`
	MinInterval         time.Duration `yaml:"min_interval" validate:"gte=0"`
	ArrivalRadiusMeters float64       `yaml:"arrival_radius_meters" validate:"gte=0"`
	// IdleTimeout stops sessions that received no sample for this long. Zero disables.
	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	ReapInterval time.Duration `yaml:"reap_interval" validate:"gte=0"`
}

type PushConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
	Channel         string `yaml:"channel"`
	BatchSize       int    `yaml:"batch_size" validate:"gte=0,lte=500"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database" validate:"required"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq" validate:"required"`
	Services ServicesConfig `yaml:"services"`
	Auth     AuthConfig     `yaml:"auth" validate:"required"`
	Tracking TrackingConfig `yaml:"tracking"`
	Push     PushConfig     `yaml:"push"`
}
