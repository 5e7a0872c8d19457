// Package factory selects and builds the single generation backend a process
// uses. Selection happens once; a broken primary configuration degrades to
// the secondary provider and, failing that, to an offline backend, so
// CreateService always returns a usable Service.
package factory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mhpenta/storygen"
	"github.com/mhpenta/storygen/config"
	"github.com/mhpenta/storygen/provider/doubao"
	"github.com/mhpenta/storygen/provider/ernie"
	"github.com/mhpenta/storygen/provider/gemini"
	"github.com/mhpenta/storygen/provider/qwen"
)

// BuildFunc constructs a backend from its configuration.
type BuildFunc func(ctx context.Context, cfg storygen.ProviderConfig) (storygen.Backend, error)

type options struct {
	logger      *slog.Logger
	storage     storygen.Storage
	builders    map[storygen.Provider]BuildFunc
	adapterOpts []storygen.AdapterOption
}

// Option configures CreateService.
type Option func(*options)

// WithLogger sets the logger used for selection and by the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStorage persists inline images. It takes precedence over the
// configured image directory.
func WithStorage(storage storygen.Storage) Option {
	return func(o *options) {
		o.storage = storage
	}
}

// WithBuilder replaces the constructor for one provider.
func WithBuilder(p storygen.Provider, fn BuildFunc) Option {
	return func(o *options) {
		o.builders[p] = fn
	}
}

// WithAdapterOptions appends options applied to the adapter after the ones
// derived from configuration.
func WithAdapterOptions(opts ...storygen.AdapterOption) Option {
	return func(o *options) {
		o.adapterOpts = append(o.adapterOpts, opts...)
	}
}

// DefaultBuilders returns the constructors of the four real backends.
func DefaultBuilders() map[storygen.Provider]BuildFunc {
	return map[storygen.Provider]BuildFunc{
		storygen.ProviderGemini: func(ctx context.Context, cfg storygen.ProviderConfig) (storygen.Backend, error) {
			return gemini.New(ctx, &cfg)
		},
		storygen.ProviderDoubao: func(ctx context.Context, cfg storygen.ProviderConfig) (storygen.Backend, error) {
			return doubao.New(ctx, &cfg)
		},
		storygen.ProviderErnie: func(ctx context.Context, cfg storygen.ProviderConfig) (storygen.Backend, error) {
			return ernie.New(ctx, &cfg)
		},
		storygen.ProviderQwen: func(ctx context.Context, cfg storygen.ProviderConfig) (storygen.Backend, error) {
			return qwen.New(ctx, &cfg)
		},
	}
}

// CreateService picks the configured provider and wraps it in a Service.
//
// Selection:
//  1. unknown or empty provider identifiers select the primary (gemini);
//  2. a primary key that does not match the Google key format selects the
//     secondary (doubao) instead;
//  3. if building the chosen backend fails, the secondary is built;
//  4. if the secondary fails too, an offline backend is bound and every call
//     resolves to its safe default.
func CreateService(ctx context.Context, cfg *config.Config, opts ...Option) *storygen.Service {
	if cfg == nil {
		cfg = config.Default()
	}

	o := &options{
		logger:   slog.Default(),
		builders: DefaultBuilders(),
	}
	for _, opt := range opts {
		opt(o)
	}

	selected, recognized := cfg.SelectedProvider()
	if !recognized {
		o.logger.Warn("unrecognized provider, using primary",
			"configured", cfg.Provider,
			"provider", selected.String(),
		)
	}

	if selected == storygen.ProviderPrimary {
		if err := storygen.ValidateCredential(selected, cfg.Settings(selected).APIKey); err != nil {
			o.logger.Warn("primary credential rejected, substituting secondary provider",
				"provider", selected.String(),
				"fallback", storygen.ProviderSecondary.String(),
				"error", err.Error(),
			)
			selected = storygen.ProviderSecondary
		}
	}

	backend, err := o.build(ctx, cfg, selected)
	if err != nil && selected != storygen.ProviderSecondary {
		o.logger.Error("failed to build provider, substituting secondary provider",
			"provider", selected.String(),
			"fallback", storygen.ProviderSecondary.String(),
			"error", err.Error(),
		)
		backend, err = o.build(ctx, cfg, storygen.ProviderSecondary)
	}
	if err != nil {
		o.logger.Error("no generation backend available, running offline",
			"error", err.Error(),
		)
		backend = storygen.OfflineBackend{}
	}

	info := backend.Info()
	o.logger.Info("generation backend selected",
		"provider", info.Provider.String(),
		"namespace", info.Namespace,
		"text_model", info.TextModel,
		"image_model", info.ImageModel,
	)

	adapter := storygen.NewAdapter(backend, o.adapterOptions(cfg)...)
	return storygen.NewService(adapter, info.Provider)
}

func (o *options) build(ctx context.Context, cfg *config.Config, p storygen.Provider) (storygen.Backend, error) {
	fn, ok := o.builders[p]
	if !ok || fn == nil {
		return nil, errors.New("no builder registered for " + p.String())
	}

	pc := cfg.ProviderConfig(p)
	pc.Logger = o.logger

	backend, err := fn(ctx, pc)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, errors.New("builder for " + p.String() + " returned no backend")
	}
	return backend, nil
}

func (o *options) adapterOptions(cfg *config.Config) []storygen.AdapterOption {
	adapterOpts := []storygen.AdapterOption{
		storygen.WithLogger(o.logger),
		storygen.WithReplayBudget(cfg.ChatReplayChars),
	}
	if cfg.Timeout > 0 {
		adapterOpts = append(adapterOpts, storygen.WithTimeout(cfg.Timeout))
	}

	storage := o.storage
	if storage == nil && cfg.ImageDir != "" {
		dir, err := storygen.NewDirStorage(cfg.ImageDir)
		if err != nil {
			o.logger.Warn("image directory unavailable, keeping inline images",
				"image_dir", cfg.ImageDir,
				"error", err.Error(),
			)
		} else {
			storage = dir
		}
	}
	if storage != nil {
		adapterOpts = append(adapterOpts, storygen.WithStorage(storage, ""))
	}

	return append(adapterOpts, o.adapterOpts...)
}
