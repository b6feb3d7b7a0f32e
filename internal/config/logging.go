package config

import "hgboot/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Debug  bool   `yaml:"debug"`  // DEBUG=true
	Format string `yaml:"format"` // console, json
}

// Options converts the config to logger construction options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Debug:  c.Debug,
		Format: c.Format,
	}
}
