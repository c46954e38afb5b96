package config

import (
	"errors"
	"fmt"
	"strings"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeWorker runs the queue worker that processes import jobs.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeRecovery runs the startup scan that re-enqueues jobs left
	// in processing by a crash.
	ServiceModeRecovery ServiceMode = "recovery"
)

// ParseServices parses a comma-delimited string of service names and returns
// the enabled services. It validates that all service names are valid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeWorker, ServiceModeRecovery:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: worker, recovery)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ImporterConfig contains ingestion pipeline configuration.
type ImporterConfig struct {
	// Concurrency is the number of import jobs processed simultaneously.
	Concurrency int `env:"MAX_CONCURRENCY" envDefault:"1"`

	// BatchSize is the number of parsed rows committed per transaction.
	BatchSize int `env:"IMPORT_BATCH_SIZE" envDefault:"100"`

	// PriceChunkSize bounds price rows per INSERT statement inside a batch
	// transaction.
	PriceChunkSize int `env:"IMPORT_PRICE_CHUNK_SIZE" envDefault:"500"`

	// QueueName is the work queue import tasks are routed through.
	QueueName string `env:"IMPORT_QUEUE" envDefault:"imports"`

	// TempDir is where source files are staged during a run. Empty means
	// the OS temp directory.
	TempDir string `env:"IMPORT_TEMP_DIR" envDefault:""`
}

// Sanitize applies guardrails to importer configuration values.
func (i *ImporterConfig) Sanitize() {
	if i.Concurrency < 1 {
		i.Concurrency = 1
	}
	if i.BatchSize < 1 {
		i.BatchSize = 1
	}
	if i.PriceChunkSize < 1 {
		i.PriceChunkSize = 1
	}
	if i.QueueName == "" {
		i.QueueName = "imports"
	}
}
