package webhooks

import (
	"time"

	"github.com/opsdesk/webhooks/pkg/config"
)

// Config controls queue sizing, retry policy, and delivery timeouts.
type Config struct {
	// QueueSize is the capacity of the in-memory task queue. Enqueueing
	// blocks when the queue is full.
	QueueSize int `env:"WEBHOOK_QUEUE_SIZE" envDefault:"1000"`

	// MaxRetries is the number of delivery attempts per event before the
	// retry chain is abandoned.
	MaxRetries int `env:"WEBHOOK_MAX_RETRIES" envDefault:"5"`

	// AutoDisableThreshold is the consecutive-failure count at which a
	// webhook is automatically disabled.
	AutoDisableThreshold int `env:"WEBHOOK_AUTO_DISABLE_THRESHOLD" envDefault:"10"`

	// RetryInterval is how often the scheduler polls storage for due
	// retries.
	RetryInterval time.Duration `env:"WEBHOOK_RETRY_INTERVAL" envDefault:"30s"`

	// RetryBatchSize caps the number of due retries picked up per poll.
	RetryBatchSize int `env:"WEBHOOK_RETRY_BATCH_SIZE" envDefault:"100"`

	// RequestTimeout bounds a single HTTP delivery attempt.
	RequestTimeout time.Duration `env:"WEBHOOK_REQUEST_TIMEOUT" envDefault:"30s"`

	// InitialRetryDelay and MaxRetryDelay bound the exponential backoff
	// between attempts.
	InitialRetryDelay time.Duration `env:"WEBHOOK_INITIAL_RETRY_DELAY" envDefault:"1s"`
	MaxRetryDelay     time.Duration `env:"WEBHOOK_MAX_RETRY_DELAY" envDefault:"1h"`
}

// LoadConfig reads Config from the environment, applying the defaults
// above for unset variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns the production defaults without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		QueueSize:            1000,
		MaxRetries:           5,
		AutoDisableThreshold: 10,
		RetryInterval:        30 * time.Second,
		RetryBatchSize:       100,
		RequestTimeout:       30 * time.Second,
		InitialRetryDelay:    time.Second,
		MaxRetryDelay:        time.Hour,
	}
}
