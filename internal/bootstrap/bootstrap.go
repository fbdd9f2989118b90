// Package bootstrap builds the support cache and reporting components from
// configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sirosfoundation/peppol-support/internal/config"
	"github.com/sirosfoundation/peppol-support/pkg/discovery"
	"github.com/sirosfoundation/peppol-support/pkg/expiring"
	"github.com/sirosfoundation/peppol-support/pkg/expiring/redisstore"
	"github.com/sirosfoundation/peppol-support/pkg/metrics"
	"github.com/sirosfoundation/peppol-support/pkg/reporting"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/filestore"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/mongostore"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/report"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/rules"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/sqlstore"
	"github.com/sirosfoundation/peppol-support/pkg/supportcache"
	"github.com/sirosfoundation/peppol-support/pkg/transport"
)

// CloseFunc releases a connection opened during bootstrap
type CloseFunc func(ctx context.Context) error

// App holds the components of one process
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	redis   *redis.Client
	closers []CloseFunc
}

// New creates an App. Components are built on demand.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}
}

// Close releases every connection in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// WriteMetrics writes the registry to the configured textfile when metrics
// are enabled.
func (a *App) WriteMetrics() error {
	if !a.Config.Observability.Metrics.Enabled {
		return nil
	}
	return prometheus.WriteToTextfile(a.Config.Observability.Metrics.Textfile, a.Registry)
}

// Network returns the configured Peppol network.
func (a *App) Network() discovery.Network {
	return discovery.Network(a.Config.Network)
}

// Resolver creates the SML/SMP resolver.
func (a *App) Resolver() (*discovery.Resolver, error) {
	d := a.Config.Discovery

	httpsConfig := transport.DefaultHTTPSConfig()
	httpsConfig.Timeout = d.Timeout
	if d.CAFile != "" {
		pool, err := transport.LoadRootCAs(d.CAFile)
		if err != nil {
			return nil, err
		}
		httpsConfig.RootCAs = pool
	}

	return discovery.NewResolver(discovery.ResolverConfig{
		SML: discovery.SMLClientConfig{
			Network:   a.Network(),
			Zone:      d.Zone,
			DNSServer: d.DNSServer,
			Timeout:   d.Timeout,
		},
		SMP: discovery.SMPClientConfig{
			HTTPClient: transport.NewHTTPClient(httpsConfig),
			UserAgent:  d.UserAgent,
		},
		TransportProfile: d.TransportProfile,
	}), nil
}

// CacheStore creates the entry store of one cache, selected by
// supportCache.backend. Redis keys are namespaced by cache name.
func (a *App) CacheStore(ctx context.Context, name string) (expiring.Store[*discovery.Endpoint], error) {
	switch a.Config.SupportCache.Backend {
	case "memory":
		return expiring.NewMemoryStore[*discovery.Endpoint](), nil
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		prefix := a.Config.SupportCache.KeyPrefix
		if prefix == "" {
			prefix = redisstore.DefaultPrefix
		}
		return redisstore.New[*discovery.Endpoint](client, redisstore.WithPrefix(prefix+name+":")), nil
	}
	return nil, fmt.Errorf("unknown support cache backend %q", a.Config.SupportCache.Backend)
}

func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	r := a.Config.Redis
	client, err := redisstore.Connect(ctx, r.Address, r.Password, r.DB)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, func(context.Context) error {
		a.redis = nil
		return client.Close()
	})
	return client, nil
}

// SupportCaches creates the MLR and MLS caches on a shared resolver.
func (a *App) SupportCaches(ctx context.Context, resolver discovery.EndpointResolver) (mlr, mls *supportcache.Cache, err error) {
	opts := func(name string) ([]supportcache.Option, error) {
		store, err := a.CacheStore(ctx, name)
		if err != nil {
			return nil, err
		}
		return []supportcache.Option{
			supportcache.WithLogger(a.Logger),
			supportcache.WithStore(store),
			supportcache.WithMetrics(a.Metrics),
			supportcache.WithMaxCacheDuration(a.Config.SupportCache.MaxDuration),
		}, nil
	}

	mlrOpts, err := opts("mlr")
	if err != nil {
		return nil, nil, err
	}
	mlsOpts, err := opts("mls")
	if err != nil {
		return nil, nil, err
	}
	return supportcache.NewMLRCache(a.Network(), resolver, mlrOpts...),
		supportcache.NewMLSCache(a.Network(), resolver, mlsOpts...), nil
}

// Storage opens the report storage selected by storage.type. It never runs
// migrations; see Migrate.
func (a *App) Storage(ctx context.Context) (reporting.Storage, error) {
	s := a.Config.Storage
	switch s.Type {
	case "file":
		return filestore.New(s.File.Dir, filestore.WithLogger(a.Logger))

	case "mongodb":
		client, err := mongostore.Connect(ctx, s.MongoDB.URI)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		return mongostore.New(client.Database(s.MongoDB.Database),
			mongostore.WithReportsCollection(s.MongoDB.ReportsCollection),
			mongostore.WithSendingReportsCollection(s.MongoDB.SendingReportsCollection),
			mongostore.WithLogger(a.Logger),
		), nil

	case "sql":
		dialect := sqlstore.Dialect(s.SQL.Dialect)
		db, err := sqlstore.Open(ctx, dialect, s.SQL.DSN)
		if err != nil {
			return nil, err
		}
		if s.SQL.MaxOpenConns > 0 {
			db.SetMaxOpenConns(s.SQL.MaxOpenConns)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		return sqlstore.New(db, dialect, sqlstore.WithSchema(s.SQL.Schema), sqlstore.WithLogger(a.Logger))
	}
	return nil, fmt.Errorf("unknown storage type %q", s.Type)
}

// Migrate prepares the storage backend. Only the sql backend has anything
// to do.
func (a *App) Migrate(ctx context.Context) error {
	s := a.Config.Storage
	if s.Type != "sql" {
		a.Logger.Info("Storage needs no migration", "type", s.Type)
		return nil
	}

	dialect := sqlstore.Dialect(s.SQL.Dialect)
	db, err := sqlstore.Open(ctx, dialect, s.SQL.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db, dialect, s.SQL.Schema); err != nil {
		return err
	}
	a.Logger.Info("Migrated report tables", "dialect", dialect, "schema", s.SQL.Schema)
	return nil
}

// RuleChecker loads reporting.rulesFile or falls back to the built-in rules.
func (a *App) RuleChecker() (*rules.Checker, error) {
	if a.Config.Reporting.RulesFile == "" {
		return rules.NewDefaultChecker()
	}
	set, err := rules.LoadRuleSet(a.Config.Reporting.RulesFile)
	if err != nil {
		return nil, err
	}
	return rules.NewChecker(set)
}

// ReportingSupport wires validator, rule checker and storage.
func (a *App) ReportingSupport(ctx context.Context, opts ...reporting.Option) (*reporting.Support, error) {
	checker, err := a.RuleChecker()
	if err != nil {
		return nil, err
	}
	storage, err := a.Storage(ctx)
	if err != nil {
		return nil, err
	}

	validator := reporting.NewValidator(report.NewMarshaller(), checker, a.Logger)
	base := []reporting.Option{
		reporting.WithLogger(a.Logger),
		reporting.WithMetrics(a.Metrics, a.Config.Storage.Type),
	}
	return reporting.NewSupport(validator, storage, append(base, opts...)...), nil
}
