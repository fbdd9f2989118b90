package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

const payload = `<?xml version="1.0" encoding="UTF-8"?>
<TransactionStatisticsReport xmlns="urn:fdc:peppol:transaction-statistics-report:1.0">
  <CustomizationID>a&amp;b</CustomizationID>
</TransactionStatisticsReport>
`

var (
	period    = reporting.Period{Year: 2024, Month: time.February}
	createdAt = time.Date(2024, time.March, 5, 10, 15, 0, 123_000_000, time.UTC)
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	require.NoError(t, err)
	return s
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "2024/02/tsr10-20240305T101500.123Z-peppol-report.xml",
		DefaultName(period, reporting.TypeTSR, createdAt, SuffixReport))

	local := createdAt.In(time.FixedZone("CET", 3600))
	assert.Equal(t, "2024/02/eusr11-20240305T101500.123Z-sending-report.xml",
		DefaultName(period, reporting.TypeEUSR, local, SuffixSendingReport))
}

func TestStoreReportRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in, err := reporting.NewReportData(reporting.TypeTSR, period, createdAt, []byte(payload), true)
	require.NoError(t, err)
	require.NoError(t, s.StoreReport(ctx, in))

	names, err := s.List(ctx, SuffixReport)
	require.NoError(t, err)
	require.Equal(t, []string{"2024/02/tsr10-20240305T101500.123Z-peppol-report.xml"}, names)

	raw, err := os.ReadFile(filepath.Join(s.BaseDir(), filepath.FromSlash(names[0])))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<PeppolReportData>")
	assert.Contains(t, string(raw), "<ReportType>tsr10</ReportType>")
	assert.Contains(t, string(raw), "<ReportMonth>2</ReportMonth>")
	assert.Contains(t, string(raw), "<ReportCreationDT>2024-03-05T10:15:00.123Z</ReportCreationDT>")
	assert.Contains(t, string(raw), `<ReportXML valid="true">`)

	out, err := s.ReadReport(names[0])
	require.NoError(t, err)
	assert.Equal(t, reporting.TypeTSR, out.Type())
	assert.Equal(t, period, out.Period())
	assert.True(t, out.CreatedAt().Equal(createdAt))
	assert.True(t, out.Valid())
	assert.Equal(t, payload, out.PayloadString())
}

func TestStoreKeepsLineEndings(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	crlf := "<?xml version=\"1.0\"?>\r\n<R>\r\n  <A>x &amp; \"y\"</A>\r\n</R>\r\n"
	in, err := reporting.NewReportData(reporting.TypeTSR, period, createdAt, []byte(crlf), true)
	require.NoError(t, err)
	require.NoError(t, s.StoreReport(ctx, in))

	sent, err := reporting.NewSendingReportData(reporting.TypeTSR, period, createdAt, "<Receipt>\r\n</Receipt>")
	require.NoError(t, err)
	require.NoError(t, s.StoreSendingReport(ctx, sent))

	name := DefaultName(period, reporting.TypeTSR, createdAt, SuffixReport)
	raw, err := os.ReadFile(filepath.Join(s.BaseDir(), filepath.FromSlash(name)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "&#xD;")

	out, err := s.ReadReport(name)
	require.NoError(t, err)
	assert.Equal(t, []byte(crlf), out.Payload())

	back, err := s.ReadSendingReport(DefaultName(period, reporting.TypeTSR, createdAt, SuffixSendingReport))
	require.NoError(t, err)
	receipt, ok := back.Receipt()
	require.True(t, ok)
	assert.Equal(t, "<Receipt>\r\n</Receipt>", receipt)
}

func TestStoreInvalidReport(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in, err := reporting.NewReportData(reporting.TypeEUSR, period, createdAt, []byte("<x/>"), false)
	require.NoError(t, err)
	require.NoError(t, s.StoreReport(ctx, in))

	out, err := s.ReadReport(DefaultName(period, reporting.TypeEUSR, createdAt, SuffixReport))
	require.NoError(t, err)
	assert.False(t, out.Valid())
}

func TestStoreSendingReport(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	withReceipt, err := reporting.NewSendingReportData(reporting.TypeTSR, period, createdAt, "<Receipt>ok</Receipt>")
	require.NoError(t, err)
	require.NoError(t, s.StoreSendingReport(ctx, withReceipt))

	later := createdAt.Add(time.Second)
	withoutReceipt, err := reporting.NewSendingReportData(reporting.TypeTSR, period, later, "")
	require.NoError(t, err)
	require.NoError(t, s.StoreSendingReport(ctx, withoutReceipt))

	names, err := s.List(ctx, SuffixSendingReport)
	require.NoError(t, err)
	require.Len(t, names, 2)

	first, err := s.ReadSendingReport(names[0])
	require.NoError(t, err)
	receipt, ok := first.Receipt()
	assert.True(t, ok)
	assert.Equal(t, "<Receipt>ok</Receipt>", receipt)

	raw, err := os.ReadFile(filepath.Join(s.BaseDir(), filepath.FromSlash(names[1])))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "<SendingReport>")

	second, err := s.ReadSendingReport(names[1])
	require.NoError(t, err)
	assert.False(t, second.HasReceipt())
	assert.True(t, second.CreatedAt().Equal(later))

	reports, err := s.List(ctx, SuffixReport)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestStoreDoesNotOverwrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in, err := reporting.NewReportData(reporting.TypeTSR, period, createdAt, []byte(payload), true)
	require.NoError(t, err)
	require.NoError(t, s.StoreReport(ctx, in))

	err = s.StoreReport(ctx, in)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reporting.ErrContractViolation)
}

func TestCustomNameFunc(t *testing.T) {
	s := newStore(t, WithNameFunc(func(p reporting.Period, rt reporting.ReportType, _ time.Time, suffix string) string {
		return rt.ShortName() + "/" + p.String() + "." + suffix
	}))

	in, err := reporting.NewReportData(reporting.TypeEUSR, period, createdAt, []byte(payload), true)
	require.NoError(t, err)
	require.NoError(t, s.StoreReport(context.Background(), in))

	_, err = os.Stat(filepath.Join(s.BaseDir(), "EUSR", "2024-02."+SuffixReport))
	assert.NoError(t, err)
}

func TestNameEscapingBaseDir(t *testing.T) {
	s := newStore(t, WithNameFunc(func(reporting.Period, reporting.ReportType, time.Time, string) string {
		return "../outside.xml"
	}))

	in, err := reporting.NewReportData(reporting.TypeTSR, period, createdAt, []byte(payload), true)
	require.NoError(t, err)
	assert.ErrorIs(t, s.StoreReport(context.Background(), in), reporting.ErrInvalidInput)
}

func TestUnwritableBaseDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := New(filepath.Join(file, "sub"))
	assert.ErrorIs(t, err, reporting.ErrBackendUnavailable)

	_, err = New("")
	assert.ErrorIs(t, err, reporting.ErrBackendUnavailable)
}

func TestStoreCanceledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in, err := reporting.NewReportData(reporting.TypeTSR, period, createdAt, []byte(payload), true)
	require.NoError(t, err)
	assert.ErrorIs(t, s.StoreReport(ctx, in), context.Canceled)
}

func TestReadMalformed(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.BaseDir(), "bad.xml"), []byte("<Other/>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.BaseDir(), "month.xml"), []byte(strings.Join([]string{
		"<PeppolReportData>",
		"<ReportType>tsr10</ReportType><ReportYear>2024</ReportYear><ReportMonth>13</ReportMonth>",
		"<ReportCreationDT>2024-03-05T10:15:00.123Z</ReportCreationDT><ReportXML valid=\"true\">x</ReportXML>",
		"</PeppolReportData>",
	}, "")), 0o600))

	_, err := s.ReadReport("bad.xml")
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = s.ReadReport("month.xml")
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = s.ReadSendingReport("missing.xml")
	assert.Error(t, err)
}
