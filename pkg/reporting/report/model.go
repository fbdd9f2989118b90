// Package report holds the Peppol Transaction Statistics Report 1.0 and End
// User Statistics Report 1.1 models and their XML serialization.
package report

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

// Namespaces and fixed identifiers of the report documents
const (
	NamespaceTSR  = "urn:fdc:peppol:transaction-statistics-report:1.0"
	NamespaceEUSR = "urn:fdc:peppol:end-user-statistics-report:1.1"

	CustomizationTSR  = "urn:fdc:peppol.eu:edec:trns:transaction-statistics-reporting:1.0"
	CustomizationEUSR = "urn:fdc:peppol.eu:edec:trns:end-user-statistics-report:1.1"
	ProfileReporting  = "urn:fdc:peppol.eu:edec:bis:reporting:1.0"

	// SchemeCertSubjectCN is the scheme of reporter and service provider IDs
	SchemeCertSubjectCN = "CertSubjectCN"
)

const dateLayout = "2006-01-02"

// Date is an xs:date
type Date struct {
	time.Time
}

// NewDate creates a date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.Format(dateLayout)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, string(b))
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", string(b), err)
	}
	d.Time = t
	return nil
}

// ReportPeriod is the inclusive date range of a report
type ReportPeriod struct {
	StartDate Date `xml:"StartDate" validate:"required"`
	EndDate   Date `xml:"EndDate" validate:"required"`
}

// SchemedID is an identifier with its scheme attribute
type SchemedID struct {
	SchemeID string `xml:"schemeID,attr" validate:"required"`
	Value    string `xml:",chardata" validate:"required"`
}

// Header is shared by TSR and EUSR
type Header struct {
	ReportPeriod ReportPeriod `xml:"ReportPeriod"`
	ReporterID   SchemedID    `xml:"ReporterID"`
}

// Key identifies a subtotal dimension value
type Key struct {
	MetaSchemeID string `xml:"metaSchemeID,attr" validate:"required"`
	SchemeID     string `xml:"schemeID,attr" validate:"required"`
	Value        string `xml:",chardata" validate:"required"`
}

// period derives the reporting period from the start date.
func (h Header) period() (reporting.Period, error) {
	start := h.ReportPeriod.StartDate
	if start.IsZero() {
		return reporting.Period{}, fmt.Errorf("%w: report period has no start date", reporting.ErrInvalidInput)
	}
	return reporting.NewPeriod(start.Year(), start.Month())
}

// TSR is a Transaction Statistics Report 1.0
type TSR struct {
	XMLName         xml.Name      `xml:"urn:fdc:peppol:transaction-statistics-report:1.0 TransactionStatisticsReport"`
	CustomizationID string        `xml:"CustomizationID" validate:"required"`
	ProfileID       string        `xml:"ProfileID" validate:"required"`
	Header          Header        `xml:"Header"`
	Total           TSRTotal      `xml:"Total"`
	Subtotals       []TSRSubtotal `xml:"Subtotal" validate:"dive"`
}

// TSRTotal counts all transactions of the period
type TSRTotal struct {
	Incoming int `xml:"Incoming" validate:"gte=0"`
	Outgoing int `xml:"Outgoing" validate:"gte=0"`
}

// TSRSubtotal counts transactions per key combination
type TSRSubtotal struct {
	Type     string `xml:"type,attr" validate:"required,oneof=PerTP PerSP-DT-PR PerSP-DT-PR-CC"`
	Keys     []Key  `xml:"Key" validate:"min=1,dive"`
	Incoming int    `xml:"Incoming" validate:"gte=0"`
	Outgoing int    `xml:"Outgoing" validate:"gte=0"`
}

// NewTSR creates an empty TSR for the given month.
func NewTSR(reporterID string, year int, month time.Month) *TSR {
	return &TSR{
		CustomizationID: CustomizationTSR,
		ProfileID:       ProfileReporting,
		Header:          newHeader(reporterID, year, month),
	}
}

// ReportType implements reporting.Report.
func (r *TSR) ReportType() reporting.ReportType { return reporting.TypeTSR }

// ReportPeriod implements reporting.Report.
func (r *TSR) ReportPeriod() (reporting.Period, error) { return r.Header.period() }

// EUSR is an End User Statistics Report 1.1
type EUSR struct {
	XMLName         xml.Name     `xml:"urn:fdc:peppol:end-user-statistics-report:1.1 EndUserStatisticsReport"`
	CustomizationID string       `xml:"CustomizationID" validate:"required"`
	ProfileID       string       `xml:"ProfileID" validate:"required"`
	Header          Header       `xml:"Header"`
	FullSet         EndUserCount `xml:"FullSet"`
	Subsets         []EUSRSubset `xml:"Subset" validate:"dive"`
}

// EndUserCount counts distinct end users
type EndUserCount struct {
	SendingEndUsers            int `xml:"SendingEndUsers" validate:"gte=0"`
	ReceivingEndUsers          int `xml:"ReceivingEndUsers" validate:"gte=0"`
	SendingOrReceivingEndUsers int `xml:"SendingOrReceivingEndUsers" validate:"gte=0"`
}

// EUSRSubset counts end users per key combination
type EUSRSubset struct {
	Type string `xml:"type,attr" validate:"required,oneof=PerDT-PR PerDT-PR-EUC PerDT-EUC PerEUC"`
	Keys []Key  `xml:"Key" validate:"min=1,dive"`
	EndUserCount
}

// NewEUSR creates an empty EUSR for the given month.
func NewEUSR(reporterID string, year int, month time.Month) *EUSR {
	return &EUSR{
		CustomizationID: CustomizationEUSR,
		ProfileID:       ProfileReporting,
		Header:          newHeader(reporterID, year, month),
	}
}

// ReportType implements reporting.Report.
func (r *EUSR) ReportType() reporting.ReportType { return reporting.TypeEUSR }

// ReportPeriod implements reporting.Report.
func (r *EUSR) ReportPeriod() (reporting.Period, error) { return r.Header.period() }

func newHeader(reporterID string, year int, month time.Month) Header {
	start := NewDate(year, month, 1)
	end := Date{start.AddDate(0, 1, -1)}
	return Header{
		ReportPeriod: ReportPeriod{StartDate: start, EndDate: end},
		ReporterID:   SchemedID{SchemeID: SchemeCertSubjectCN, Value: reporterID},
	}
}
