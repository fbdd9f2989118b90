package reporting

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/sirosfoundation/peppol-support/pkg/identifier"
)

var (
	// ErrContractViolation marks errors that indicate a broken backend or a
	// programming error rather than a routine failure
	ErrContractViolation = errors.New("contract violation")
	// ErrUnsupportedReportType is returned for report types without a mapping
	ErrUnsupportedReportType = errors.New("unsupported report type")
	// ErrInvalidInput is returned when a record cannot be constructed
	ErrInvalidInput = errors.New("invalid input")
	// ErrBackendUnavailable is returned by backends that cannot be reached
	ErrBackendUnavailable = errors.New("storage backend unavailable")
)

// MaxIDLength is the maximum length of a report type ID, bound by the
// relational column width
const MaxIDLength = 12

// ReportType identifies a Peppol report kind by its short ID
type ReportType string

const (
	// TypeTSR is the Transaction Statistics Report 1.0
	TypeTSR ReportType = "tsr10"
	// TypeEUSR is the End User Statistics Report 1.1
	TypeEUSR ReportType = "eusr11"
)

// ReportTypes returns all known report types.
func ReportTypes() []ReportType {
	return []ReportType{TypeTSR, TypeEUSR}
}

// ParseReportType returns the known report type with the given ID.
func ParseReportType(id string) (ReportType, error) {
	t := ReportType(id)
	if err := t.Validate(); err != nil {
		return "", err
	}
	for _, known := range ReportTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedReportType, id)
}

// ID returns the short ID used in storage.
func (t ReportType) ID() string {
	return string(t)
}

// Validate checks that the ID is usable as a storage key.
func (t ReportType) Validate() error {
	if t == "" {
		return fmt.Errorf("%w: empty report type", ErrInvalidInput)
	}
	if len(t) > MaxIDLength {
		return fmt.Errorf("%w: report type ID %q longer than %d characters", ErrInvalidInput, string(t), MaxIDLength)
	}
	return nil
}

// DisplayName returns a human readable name.
func (t ReportType) DisplayName() string {
	switch t {
	case TypeTSR:
		return "Transaction Statistics Report"
	case TypeEUSR:
		return "End-User Statistics Report"
	}
	return string(t)
}

// ShortName returns "TSR" or "EUSR", used as message prefix.
func (t ReportType) ShortName() string {
	switch t {
	case TypeTSR:
		return "TSR"
	case TypeEUSR:
		return "EUSR"
	}
	return string(t)
}

// Identifiers returns the document type and process a report of this type
// is sent with.
func (t ReportType) Identifiers() (identifier.DocumentTypeID, identifier.ProcessID, error) {
	switch t {
	case TypeTSR:
		return identifier.DocTypeTSR, identifier.ProcessReporting, nil
	case TypeEUSR:
		return identifier.DocTypeEUSR, identifier.ProcessReporting, nil
	}
	return identifier.DocumentTypeID{}, identifier.ProcessID{},
		fmt.Errorf("%w: %w: %q", ErrContractViolation, ErrUnsupportedReportType, string(t))
}

// Period is the reporting month
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates year and month.
func NewPeriod(year int, month time.Month) (Period, error) {
	if year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d out of range", ErrInvalidInput, year)
	}
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidInput, month)
	}
	return Period{Year: year, Month: month}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String returns YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// normalizeTime keeps millisecond precision in UTC, the finest precision all
// backends store.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ReportData is a validated report ready to be stored
type ReportData struct {
	reportType ReportType
	period     Period
	createdAt  time.Time
	payload    []byte
	valid      bool
}

// NewReportData creates a report record. The payload must not be empty and
// is copied.
func NewReportData(reportType ReportType, period Period, createdAt time.Time, payload []byte, valid bool) (*ReportData, error) {
	if reportType == "" {
		return nil, fmt.Errorf("%w: empty report type", ErrInvalidInput)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty report payload", ErrInvalidInput)
	}
	return &ReportData{
		reportType: reportType,
		period:     period,
		createdAt:  normalizeTime(createdAt),
		payload:    bytes.Clone(payload),
		valid:      valid,
	}, nil
}

func (r *ReportData) Type() ReportType     { return r.reportType }
func (r *ReportData) Period() Period       { return r.period }
func (r *ReportData) CreatedAt() time.Time { return r.createdAt }
func (r *ReportData) Valid() bool          { return r.valid }

// Payload returns a copy of the report markup.
func (r *ReportData) Payload() []byte { return bytes.Clone(r.payload) }

// PayloadString returns the markup as text.
func (r *ReportData) PayloadString() string { return string(r.payload) }

// SendingReportData records the outcome of sending a report
type SendingReportData struct {
	reportType ReportType
	period     Period
	createdAt  time.Time
	receipt    string
}

// NewSendingReportData creates a sending report record. An empty receipt
// means there is none.
func NewSendingReportData(reportType ReportType, period Period, createdAt time.Time, receipt string) (*SendingReportData, error) {
	if reportType == "" {
		return nil, fmt.Errorf("%w: empty report type", ErrInvalidInput)
	}
	return &SendingReportData{
		reportType: reportType,
		period:     period,
		createdAt:  normalizeTime(createdAt),
		receipt:    receipt,
	}, nil
}

func (r *SendingReportData) Type() ReportType     { return r.reportType }
func (r *SendingReportData) Period() Period       { return r.period }
func (r *SendingReportData) CreatedAt() time.Time { return r.createdAt }

// Receipt returns the receipt and whether there is one.
func (r *SendingReportData) Receipt() (string, bool) {
	return r.receipt, r.receipt != ""
}

// HasReceipt reports whether the sender returned content.
func (r *SendingReportData) HasReceipt() bool { return r.receipt != "" }

// Result is the outcome of a pipeline operation
type Result int

const (
	// Failure is the zero value
	Failure Result = iota
	Success
)

// IsSuccess reports r == Success.
func (r Result) IsSuccess() bool { return r == Success }

func (r Result) String() string {
	if r == Success {
		return "success"
	}
	return "failure"
}

func resultOf(ok bool) Result {
	if ok {
		return Success
	}
	return Failure
}
