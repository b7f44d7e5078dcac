// Package config loads environment-backed configuration structs.
//
// Each package declares its own struct with `env` tags and loads it through
// the generic Load/MustLoad helpers. A .env file is read once per process if
// present, and every struct type is parsed at most once; later calls return
// the cached value so configuration stays immutable for the process lifetime.
//
//	type Config struct {
//		CentralDomain string `env:"TENANT_CENTRAL_DOMAIN,required"`
//		TrialDays     int    `env:"TENANT_TRIAL_DAYS" envDefault:"14"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
