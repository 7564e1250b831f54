// Package config loads the service's global settings and the persisted
// set of hotfolder configurations.
package config

import (
	"time"

	"github.com/spf13/viper"
	log "github.com/sirupsen/logrus"
)

// Settings holds process-wide configuration loaded from settings.json
// and HOTFOLDER_* environment variables, with environment variables
// taking precedence over the file (viper's default). Extra captures any key viper doesn't map onto a known
// field, so a settings.json written by a newer build round-trips
// through an older one without losing data.
type Settings struct {
	Port               string        `mapstructure:"port"`
	WorkerCount        int           `mapstructure:"worker_count"`
	LogLevel           string        `mapstructure:"log_level"`
	RedisURL           string        `mapstructure:"redis_url"`
	ConfigStorePath    string        `mapstructure:"config_store_path"`
	TempBaseDir        string        `mapstructure:"temp_base_dir"`
	DependenciesDir    string        `mapstructure:"dependencies_dir"`
	DebounceWindow     time.Duration `mapstructure:"debounce_window"`
	PairingTimeout     time.Duration `mapstructure:"pairing_timeout"`
	ShutdownGrace      time.Duration `mapstructure:"shutdown_grace"`
	AzureConnectionStr string        `mapstructure:"azure_storage_connection_string"`
	AzureStorageContainer string     `mapstructure:"azure_storage_container"`

	Extra map[string]interface{} `mapstructure:",remain"`
}

// Load reads settings.json from configDir (falling back to defaults
// and environment variables HOTFOLDER_*) and returns the resolved
// Settings.
func Load(configDir string) (*Settings, error) {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("json")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HOTFOLDER")
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("worker_count", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("config_store_path", "config/hotfolders.json")
	v.SetDefault("temp_base_dir", "")
	v.SetDefault("dependencies_dir", "dependencies")
	v.SetDefault("debounce_window", 2*time.Second)
	v.SetDefault("pairing_timeout", 30*time.Second)
	v.SetDefault("shutdown_grace", 30*time.Second)
	v.SetDefault("azure_storage_container", "hotfolder-exports")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("config: no settings.json found, using defaults and environment")
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"port":    s.Port,
		"workers": s.WorkerCount,
	}).Info("config: settings loaded")

	return &s, nil
}

// Save re-serializes Settings to settings.json inside configDir,
// preserving Extra's unrecognised keys alongside the known fields.
func Save(configDir string, s *Settings) error {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	for k, val := range s.Extra {
		v.Set(k, val)
	}
	v.Set("port", s.Port)
	v.Set("worker_count", s.WorkerCount)
	v.Set("log_level", s.LogLevel)
	v.Set("redis_url", s.RedisURL)
	v.Set("config_store_path", s.ConfigStorePath)
	v.Set("temp_base_dir", s.TempBaseDir)
	v.Set("dependencies_dir", s.DependenciesDir)
	v.Set("debounce_window", s.DebounceWindow)
	v.Set("pairing_timeout", s.PairingTimeout)
	v.Set("shutdown_grace", s.ShutdownGrace)
	v.Set("azure_storage_connection_string", s.AzureConnectionStr)
	v.Set("azure_storage_container", s.AzureStorageContainer)

	return v.WriteConfigAs(configDir + "/settings.json")
}
