// Package config loads configuration structs from environment variables.
//
// Fields are declared with `env` tags and parsed by
// github.com/caarlos0/env; a .env file in the working directory is loaded
// once (and silently skipped when absent) so local development does not
// need exported variables:
//
//	type Config struct {
//		QueueSize int           `env:"WEBHOOK_QUEUE_SIZE" envDefault:"1000"`
//		Timeout   time.Duration `env:"WEBHOOK_REQUEST_TIMEOUT" envDefault:"30s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
package config
