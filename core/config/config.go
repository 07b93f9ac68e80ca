package config

import (
	"fmt"
	"reflect"
	"strings"

	"moodle-sync/core/database"
	"moodle-sync/core/logger"
	"moodle-sync/core/metrics"
	"moodle-sync/core/runner"
	"moodle-sync/core/server"
	"moodle-sync/core/storage"
	"moodle-sync/feature/erp"
	"moodle-sync/feature/moodleapi"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Sync holds the run settings shared by every kind.
	Sync runner.Config `mapstructure:"sync"`
	// Source holds configuration for the ERP source views.
	Source erp.Config `mapstructure:"source"`
	// Moodle holds configuration for the Moodle web service backend.
	Moodle moodleapi.Config `mapstructure:"moodle"`
	// Database holds configuration for the direct Moodle database backend.
	Database database.Config `mapstructure:"database"`
	// Storage holds configuration for the report archive.
	Storage storage.Config `mapstructure:"storage"`
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Metrics holds configuration for Prometheus metrics.
	Metrics metrics.Config `mapstructure:"metrics"`
	// Roles holds extra role definitions.
	Roles RolesConfig `mapstructure:"roles"`
}

// RolesConfig points at a YAML file of site-specific roles.
type RolesConfig struct {
	// File is a YAML role file merged over the stock Moodle roles.
	File string `mapstructure:"file" default:""`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SOURCE_DB_HOST -> source.db.host)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks settings that would otherwise only fail in the middle of a run.
func (c *Config) Validate() error {
	for name, backend := range map[string]string{
		"sync.course_backend":    c.Sync.CourseBackend,
		"sync.enrolment_backend": c.Sync.EnrolmentBackend,
		"sync.user_backend":      c.Sync.UserBackend,
	} {
		if backend != runner.BackendAPI && backend != runner.BackendDB {
			return fmt.Errorf("invalid %s %q (want api or db)", name, backend)
		}
	}
	if c.Sync.CourseKey != "shortname" && c.Sync.CourseKey != "idnumber" {
		return fmt.Errorf("invalid sync.course_key %q (want shortname or idnumber)", c.Sync.CourseKey)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if _, err := moodleapi.ParseTemplates(c.Moodle.Templates); err != nil {
		return fmt.Errorf("moodle: %w", err)
	}
	return nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
