// Package providers initializes and registers the concrete data providers
// with a provider registry.
package providers

import (
	"time"

	"github.com/seenimoa/fredcycle/internal/config"
	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/providers/fred"
	"github.com/seenimoa/fredcycle/internal/providers/offline"
	"github.com/seenimoa/fredcycle/internal/store"
)

// RegisterAll registers the providers in fallback order. FRED is registered
// only when an API key is configured; the offline store provider is always
// registered last, so it answers when FRED is missing or failing.
func RegisterAll(reg *provider.Registry, cfg config.FREDConfig, st store.Store) error {
	if cfg.APIKey != "" {
		fp := fred.New(FREDOptions(cfg))
		if err := fp.Init(map[string]string{"api_key": cfg.APIKey}); err != nil {
			return err
		}
		if err := reg.Register(fp); err != nil {
			return err
		}
	}

	sp := offline.New(st)
	if err := sp.Init(nil); err != nil {
		return err
	}
	return reg.Register(sp)
}

// FREDOptions converts the fred config section into provider options.
func FREDOptions(cfg config.FREDConfig) fred.Options {
	return fred.Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		RateLimit: cfg.RateLimit,
		CacheTTL:  time.Duration(cfg.CacheTTL) * time.Second,
	}
}
