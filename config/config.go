// Package config holds environment-driven configuration for the catalog
// ingestion service.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config files for
// available variables:
//   - database.go: Postgres and Redis configuration
//   - storage.go:  object store and rate provider configuration
//   - services.go: service mode and importer configuration
package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
type AppConfig struct {
	// IsDev controls development mode behavior.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// External collaborators
	ObjectStore ObjectStoreConfig `envPrefix:"OBJECT_STORE_"`
	Rates       RatesConfig       `envPrefix:"RATES_"`

	// Importer pipeline configuration
	Importer ImporterConfig

	// Services is a comma-delimited list of enabled services.
	// Valid values: worker, recovery
	Services string `env:"SERVICES" envDefault:"worker,recovery"`
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *AppConfig) Sanitize() {
	c.Importer.Sanitize()
	c.Rates.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsWorkerEnabled returns true if the queue worker service is enabled.
func (c *AppConfig) IsWorkerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeWorker]
}

// IsRecoveryEnabled returns true if the startup recovery scan is enabled.
func (c *AppConfig) IsRecoveryEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeRecovery]
}
