package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/route-geocoder/internal/config"
	"github.com/sells-group/route-geocoder/internal/reconcile"
	"github.com/sells-group/route-geocoder/internal/store"
	"github.com/sells-group/route-geocoder/pkg/geocode"
)

// geocoderEnv holds the wired engine and its resources.
type geocoderEnv struct {
	Engine *reconcile.Engine
	Client *geocode.Client
	Store  store.Store // nil when store.driver is empty
}

// Close releases the store.
func (e *geocoderEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(c.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildProviders returns the cascade in priority order. LocationIQ is always
// listed; without a key it reports itself unavailable and is skipped.
func buildProviders(c *config.Config) []geocode.Provider {
	if c.LocationIQ.Key == "" {
		zap.L().Info("LOCATIONIQ_API_KEY not set, using Nominatim only")
	}
	return []geocode.Provider{
		geocode.NewLocationIQ(c.LocationIQ.Key,
			geocode.WithEndpoints(c.LocationIQ.SearchURL, c.LocationIQ.ReverseURL),
			geocode.WithCountryCodes(c.Geocode.CountryCodes),
		),
		geocode.NewNominatim(
			geocode.WithEndpoints(c.Nominatim.SearchURL, c.Nominatim.ReverseURL),
			geocode.WithUserAgent(c.Nominatim.UserAgent),
			geocode.WithCountryCodes(c.Geocode.CountryCodes),
		),
	}
}

func buildClient(c *config.Config) *geocode.Client {
	return geocode.NewClient(buildProviders(c),
		geocode.WithLimit(c.Geocode.Limit),
		geocode.WithTimeout(time.Duration(c.Geocode.TimeoutSecs)*time.Second),
		geocode.WithBreakers(c.Geocode.BreakerThreshold, time.Duration(c.Geocode.BreakerCooldownSecs)*time.Second),
	)
}

func thresholds(c *config.Config) reconcile.Thresholds {
	return reconcile.Thresholds{
		DistanceMeters: c.Reconcile.DistanceMeters,
		MinScore:       c.Reconcile.MinScore,
		AcceptScore:    c.Reconcile.AcceptScore,
		HighScore:      c.Reconcile.HighScore,
	}
}

// initGeocoder validates the config for mode and wires store, providers and
// engine. Extra engine options are appended last.
func initGeocoder(ctx context.Context, mode string, extra ...reconcile.Option) (*geocoderEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := buildClient(cfg)
	if len(client.Available()) == 0 {
		if st != nil {
			_ = st.Close()
		}
		return nil, eris.New("no geocoding provider available")
	}

	opts := []reconcile.Option{
		reconcile.WithThresholds(thresholds(cfg)),
		reconcile.WithConcurrency(cfg.Reconcile.Concurrency),
	}
	if st != nil {
		opts = append(opts, reconcile.WithLearnedSource(store.Lookup{Store: st}))
	}
	opts = append(opts, extra...)

	zap.L().Info("geocoder ready",
		zap.Strings("providers", client.Available()),
		zap.String("store", cfg.Store.Driver),
		zap.Int("concurrency", cfg.Reconcile.Concurrency),
	)

	return &geocoderEnv{
		Engine: reconcile.NewEngine(client, opts...),
		Client: client,
		Store:  st,
	}, nil
}
