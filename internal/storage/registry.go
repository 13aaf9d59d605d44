package storage

import (
	"fmt"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// Registry builds and holds one adapter per storage kind. Secret settings
// are decrypted through the injected cipher before adapters see them.
type Registry struct {
	adapters map[Kind]Adapter
	logger   *logging.Logger
}

// NewRegistry creates adapters for every storage kind from the configuration
func NewRegistry(cfg Config, cipher SettingsCipher, logger *logging.Logger) (*Registry, error) {
	if cipher == nil {
		cipher = NopCipher{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigurationError("invalid storage configuration", err)
	}

	// Secrets may be stored encrypted; plaintext values pass through
	var err error
	if cfg.S3.AccessKey, err = cipher.Decrypt(cfg.S3.AccessKey); err != nil {
		return nil, errors.NewConfigurationError("failed to decrypt S3 access key", err)
	}
	if cfg.S3.SecretKey, err = cipher.Decrypt(cfg.S3.SecretKey); err != nil {
		return nil, errors.NewConfigurationError("failed to decrypt S3 secret key", err)
	}
	if cfg.Azure.AccountKey, err = cipher.Decrypt(cfg.Azure.AccountKey); err != nil {
		return nil, errors.NewConfigurationError("failed to decrypt Azure account key", err)
	}

	return &Registry{
		adapters: map[Kind]Adapter{
			KindLocal: NewLocal(cfg.Local, logger),
			KindS3:    NewS3(cfg.S3, logger),
			KindAzure: NewAzure(cfg.Azure, logger),
			KindGCS:   NewGCS(cfg.GCS, logger),
		},
		logger: logger,
	}, nil
}

// Get returns the adapter for a storage kind
func (r *Registry) Get(kind Kind) (Adapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported storage kind: %s", kind), nil)
	}
	return adapter, nil
}

// All returns every adapter in a stable order
func (r *Registry) All() []Adapter {
	all := make([]Adapter, 0, len(r.adapters))
	for _, kind := range AllKinds {
		if adapter, ok := r.adapters[kind]; ok {
			all = append(all, adapter)
		}
	}
	return all
}

// Configured returns the adapters with usable settings
func (r *Registry) Configured() []Adapter {
	var configured []Adapter
	for _, adapter := range r.All() {
		if adapter.IsConfigured() {
			configured = append(configured, adapter)
		}
	}
	return configured
}

// Resolve maps destination names to adapters, rejecting unknown kinds and
// destinations that have no usable settings
func (r *Registry) Resolve(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		return nil, errors.NewValidationError("at least one storage destination is required", nil)
	}

	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}

		adapter, err := r.Get(kind)
		if err != nil {
			return nil, err
		}

		if !adapter.IsConfigured() {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("storage destination %s is not configured", name), nil)
		}

		adapters = append(adapters, adapter)
	}

	return adapters, nil
}
