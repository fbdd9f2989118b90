package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/peppol-support/internal/config"
	"github.com/sirosfoundation/peppol-support/pkg/discovery"
	"github.com/sirosfoundation/peppol-support/pkg/identifier"
	"github.com/sirosfoundation/peppol-support/pkg/reporting"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/filestore"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/report"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/sqlstore"
	"github.com/sirosfoundation/peppol-support/pkg/transport"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.File.Dir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	app := New(cfg, discardLogger)
	t.Cleanup(func() { app.Close(context.Background()) })
	return app
}

func sampleTSR() *report.TSR {
	r := report.NewTSR("POP000123", 2024, time.April)
	r.Total = report.TSRTotal{Incoming: 4, Outgoing: 2}
	r.Subtotals = []report.TSRSubtotal{{
		Type:     "PerTP",
		Keys:     []report.Key{{MetaSchemeID: "TP", SchemeID: "Peppol", Value: discovery.TransportPeppolAS4V2}},
		Incoming: 4,
		Outgoing: 2,
	}}
	return r
}

func TestFileStorage(t *testing.T) {
	app := newApp(t, nil)

	storage, err := app.Storage(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &filestore.Store{}, storage)
}

func TestResolverCAFile(t *testing.T) {
	app := newApp(t, nil)
	resolver, err := app.Resolver()
	require.NoError(t, err)
	assert.Equal(t, discovery.NetworkProduction, resolver.Network())

	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	app = newApp(t, func(c *config.Config) { c.Discovery.CAFile = bad })
	_, err = app.Resolver()
	assert.ErrorIs(t, err, transport.ErrNoCertificates)

	app = newApp(t, func(c *config.Config) { c.Discovery.CAFile = filepath.Join(t.TempDir(), "missing.pem") })
	_, err = app.Resolver()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSQLStorageNeedsMigration(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reports.db")
	app := newApp(t, func(c *config.Config) {
		c.Storage.Type = "sql"
		c.Storage.SQL.Dialect = "sqlite"
		c.Storage.SQL.DSN = dsn
	})
	ctx := context.Background()

	storage, err := app.Storage(ctx)
	require.NoError(t, err)
	require.IsType(t, &sqlstore.Store{}, storage)

	r, err := reporting.NewReportData(reporting.TypeTSR, reporting.Period{Year: 2024, Month: time.April}, time.Now(), []byte("<x/>"), true)
	require.NoError(t, err)
	assert.Error(t, storage.StoreReport(ctx, r), "tables are not created implicitly")

	require.NoError(t, app.Migrate(ctx))
	assert.NoError(t, storage.StoreReport(ctx, r))
}

func TestMigrateWithoutSQL(t *testing.T) {
	assert.NoError(t, newApp(t, nil).Migrate(context.Background()))
}

func TestUnknownBackends(t *testing.T) {
	app := newApp(t, func(c *config.Config) {
		c.Storage.Type = "s3"
		c.SupportCache.Backend = "memcached"
	})

	_, err := app.Storage(context.Background())
	assert.Error(t, err)
	_, err = app.CacheStore(context.Background(), "mlr")
	assert.Error(t, err)
}

func TestSupportCachesUseSeparateStores(t *testing.T) {
	app := newApp(t, func(c *config.Config) {
		c.SupportCache.MaxDuration = time.Hour
	})

	calls := map[string]int{}
	resolver := discovery.ResolverFunc(func(_ context.Context, _ discovery.Network, _ identifier.ParticipantID, docType identifier.DocumentTypeID, _ identifier.ProcessID) (*discovery.Endpoint, error) {
		calls[docType.Value]++
		if docType == identifier.DocTypeMLR {
			return &discovery.Endpoint{EndpointURL: "https://ap.example.com/as4"}, nil
		}
		return nil, nil
	})

	mlr, mls, err := app.SupportCaches(context.Background(), resolver)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mlr.MaxCacheDuration())

	participant := identifier.NewParticipantID("0088:7315458756324")
	for range 2 {
		ok, err := mlr.IsSupported(context.Background(), participant)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = mls.IsSupported(context.Background(), participant)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, calls[identifier.DocTypeMLR.Value])
	assert.Equal(t, 1, calls[identifier.DocTypeMLS.Value])
}

func TestRuleCheckerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
eusr11:
  - id: LOCAL-EUSR-01
    severity: error
    expression: "root == 'EndUserStatisticsReport'"
    message: Not an EUSR
`), 0o600))

	app := newApp(t, func(c *config.Config) { c.Reporting.RulesFile = path })
	checker, err := app.RuleChecker()
	require.NoError(t, err)

	markup, _ := report.NewMarshaller().Marshal(sampleTSR())
	diags, err := checker.Check(context.Background(), reporting.TypeEUSR, markup)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "LOCAL-EUSR-01", diags[0].RuleID)

	app.Config.Reporting.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = app.RuleChecker()
	assert.Error(t, err)
}

func TestReportingSupportStoresValidReport(t *testing.T) {
	app := newApp(t, nil)
	ctx := context.Background()

	support, err := app.ReportingSupport(ctx)
	require.NoError(t, err)

	var consumed []byte
	result, err := support.ValidateAndStore(ctx, sampleTSR(), func(b []byte) { consumed = b })
	require.NoError(t, err)
	assert.True(t, result.IsSuccess())
	assert.NotEmpty(t, consumed)

	store, err := filestore.New(app.Config.Storage.File.Dir)
	require.NoError(t, err)
	names, err := store.List(ctx, filestore.SuffixReport)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0], "2024/04/tsr10-"))
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peppol.prom")
	app := newApp(t, func(c *config.Config) {
		c.Observability.Metrics.Enabled = true
		c.Observability.Metrics.Textfile = path
	})
	app.Metrics.IncValidated(reporting.TypeTSR.ID(), true)

	require.NoError(t, app.WriteMetrics())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "peppol_reporting_validations_total")

	disabled := newApp(t, func(c *config.Config) { c.Observability.Metrics.Textfile = filepath.Join(t.TempDir(), "x.prom") })
	require.NoError(t, disabled.WriteMetrics())
	_, err = os.Stat(disabled.Config.Observability.Metrics.Textfile)
	assert.True(t, os.IsNotExist(err))
}
