package config

// ObjectStoreConfig contains S3-compatible object storage configuration.
type ObjectStoreConfig struct {
	Endpoint  string `env:"ENDPOINT"   envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:""`
	SecretKey string `env:"SECRET_KEY" envDefault:""`
	Bucket    string `env:"BUCKET"     envDefault:"catalog-uploads"`
	Region    string `env:"REGION"     envDefault:""`
	UseSSL    bool   `env:"USE_SSL"    envDefault:"false"`
}

// RatesConfig contains exchange-rate provider configuration.
type RatesConfig struct {
	// Endpoint is the base URL of the currency API. The provider serves
	// one JSON document per base currency under /currencies/<base>.json.
	Endpoint string `env:"ENDPOINT" envDefault:"https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1"`

	// BaseCurrency is the currency source files are denominated in.
	BaseCurrency string `env:"BASE_CURRENCY" envDefault:"USD"`

	// CurrencySymbol is the marker every price field must start with.
	CurrencySymbol string `env:"CURRENCY_SYMBOL" envDefault:"$"`
}

// Sanitize applies guardrails to rate provider configuration values.
func (r *RatesConfig) Sanitize() {
	if r.BaseCurrency == "" {
		r.BaseCurrency = "USD"
	}
	if r.CurrencySymbol == "" {
		r.CurrencySymbol = "$"
	}
}
