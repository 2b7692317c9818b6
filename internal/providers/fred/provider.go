// Package fred implements the FRED (Federal Reserve Economic Data) provider.
// FRED provides free access to over 800,000 economic time series from dozens
// of sources via the FRED API.
//
// Requires a free API key from https://fred.stlouisfed.org/docs/api/api_key.html
// Rate limit: 120 requests/minute.
// Docs: https://fred.stlouisfed.org/docs/api/fred/
package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/seenimoa/fredcycle/internal/infra"
	"github.com/seenimoa/fredcycle/internal/provider"
)

const (
	providerName   = "fred"
	DefaultBaseURL = "https://api.stlouisfed.org/fred"
	credAPIKey     = "api_key"
	paramAPIKey    = "_fred_api_key"
)

// Options configures the HTTP side of the provider.
type Options struct {
	BaseURL   string        // API root, without trailing slash
	Timeout   time.Duration // per request
	RateLimit int           // requests per minute, shared by all fetchers
	CacheTTL  time.Duration // in-memory response cache; 0 disables
}

// DefaultOptions matches FRED's published limits.
func DefaultOptions() Options {
	return Options{
		BaseURL:   DefaultBaseURL,
		Timeout:   30 * time.Second,
		RateLimit: 120,
		CacheTTL:  time.Hour,
	}
}

// client is the transport shared by the provider and its fetchers.
type client struct {
	http    *resty.Client
	baseURL string
}

// Provider implements provider.Provider for FRED.
type Provider struct {
	provider.BaseProvider
	api    *client
	apiKey string
}

// New creates a new FRED provider and registers all fetchers.
func New(opts Options) *Provider {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = def.RateLimit
	}

	api := &client{
		http:    infra.NewHTTPClient(opts.Timeout),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
	limiter := infra.PerMinute(opts.RateLimit)

	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Federal Reserve Economic Data - 800K+ economic time series",
			"https://fred.stlouisfed.org",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "FRED API key from fred.stlouisfed.org",
					Required:    true,
					EnvVar:      "FRED_API_KEY",
				},
			},
		),
		api: api,
	}

	p.RegisterFetcher(newObservationsFetcher(api, opts.CacheTTL, limiter))
	p.RegisterFetcher(newSeriesInfoFetcher(api, opts.CacheTTL, limiter))
	p.RegisterFetcher(newSearchFetcher(api, opts.CacheTTL, limiter))
	return p
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.apiKey = credentials[credAPIKey]
	return nil
}

// Ping checks connectivity and the API key by requesting GDP metadata.
func (p *Provider) Ping(ctx context.Context) error {
	var resp fredSeriesResponse
	if err := p.api.get(ctx, "series", p.apiKey, map[string]string{"series_id": "GDP"}, &resp); err != nil {
		return fmt.Errorf("fred ping: %w", err)
	}
	return nil
}

// APIKey returns the stored API key.
func (p *Provider) APIKey() string {
	return p.apiKey
}

// Fetcher overrides BaseProvider.Fetcher to return a wrapper that
// auto-injects the FRED API key into query params before delegating.
func (p *Provider) Fetcher(model provider.ModelType) provider.Fetcher {
	inner := p.BaseProvider.Fetcher(model)
	if inner == nil {
		return nil
	}
	return &apiKeyInjector{inner: inner, apiKey: &p.apiKey}
}

// apiKeyInjector wraps a Fetcher and injects the FRED API key.
type apiKeyInjector struct {
	inner  provider.Fetcher
	apiKey *string
}

func (w *apiKeyInjector) ModelType() provider.ModelType { return w.inner.ModelType() }
func (w *apiKeyInjector) Description() string           { return w.inner.Description() }
func (w *apiKeyInjector) RequiredParams() []string      { return w.inner.RequiredParams() }
func (w *apiKeyInjector) OptionalParams() []string      { return w.inner.OptionalParams() }

func (w *apiKeyInjector) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	enriched := make(provider.QueryParams, len(params)+1)
	for k, v := range params {
		enriched[k] = v
	}
	enriched[paramAPIKey] = *w.apiKey
	return w.inner.Fetch(ctx, enriched)
}

// get performs a GET on endpoint with api_key and file_type=json appended.
// FRED's "does not exist" 400 responses are reported as provider.ErrNotFound
// and api_key complaints as *provider.ErrInvalidCredentials.
func (c *client) get(ctx context.Context, endpoint, apiKey string, query map[string]string, dest any) error {
	q := make(map[string]string, len(query)+2)
	for k, v := range query {
		if v != "" {
			q[k] = v
		}
	}
	q["api_key"] = apiKey
	q["file_type"] = "json"

	err := infra.GetJSON(ctx, c.http, c.baseURL+"/"+endpoint, q, dest)
	if err == nil {
		return nil
	}
	var he *infra.HTTPError
	if errors.As(err, &he) {
		var fe fredError
		if json.Unmarshal(he.Body, &fe) == nil && fe.ErrorMessage != "" {
			if he.StatusCode == 400 && strings.Contains(strings.ToLower(fe.ErrorMessage), "does not exist") {
				return fmt.Errorf("%w: %s", provider.ErrNotFound, fe.ErrorMessage)
			}
			if strings.Contains(fe.ErrorMessage, "api_key") {
				return &provider.ErrInvalidCredentials{Provider: providerName, Detail: fe.ErrorMessage}
			}
			return fmt.Errorf("%s: %w", fe.ErrorMessage, err)
		}
	}
	return err
}
