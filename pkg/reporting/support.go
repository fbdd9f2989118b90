package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sirosfoundation/peppol-support/pkg/identifier"
	"github.com/sirosfoundation/peppol-support/pkg/metrics"
)

var tracer = otel.Tracer("github.com/sirosfoundation/peppol-support/reporting")

// Sender transmits a report through the Peppol network and returns the
// receipt, which may be empty.
type Sender func(ctx context.Context, docType identifier.DocumentTypeID, process identifier.ProcessID, payload []byte) ([]byte, error)

// WarningHandler receives warning messages
type WarningHandler func(msg string)

// ErrorHandler receives error messages, with the cause if there is one
type ErrorHandler func(msg string, err error)

// Option configures Support
type Option func(*Support)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Support) { s.logger = logger }
}

// WithWarningHandler replaces the default warning handler, which logs.
func WithWarningHandler(h WarningHandler) Option {
	return func(s *Support) { s.warnHandler = h }
}

// WithErrorHandler replaces the default error handler, which logs.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Support) { s.errorHandler = h }
}

// WithClock sets the time source for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Support) { s.now = now }
}

// WithMetrics records validations, storage writes and sends. backend labels
// the storage writes.
func WithMetrics(m *metrics.Metrics, backend string) Option {
	return func(s *Support) {
		s.metrics = m
		s.backend = backend
	}
}

// Support runs the validate-store and send-record workflows.
type Support struct {
	validator    *Validator
	storage      Storage
	logger       *slog.Logger
	warnHandler  WarningHandler
	errorHandler ErrorHandler
	now          func() time.Time
	metrics      *metrics.Metrics
	backend      string
}

// NewSupport creates the workflow runner.
func NewSupport(validator *Validator, storage Storage, opts ...Option) *Support {
	s := &Support{
		validator: validator,
		storage:   storage,
		now:       time.Now,
		backend:   "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.warnHandler == nil {
		s.warnHandler = func(msg string) { s.logger.Warn(msg) }
	}
	if s.errorHandler == nil {
		s.errorHandler = func(msg string, err error) {
			if err != nil {
				s.logger.Error(msg, "error", err)
			} else {
				s.logger.Error(msg)
			}
		}
	}
	return s
}

// ValidateAndStore validates report and stores it with its validity.
// consume, if not nil, receives the serialized report once.
//
// The result is Success only if the report is valid and was stored. An
// empty serialization fails without storing. The returned error is set only
// for contract violations of the storage.
func (s *Support) ValidateAndStore(ctx context.Context, report Report, consume func([]byte)) (Result, error) {
	reportType := report.ReportType()
	short := reportType.ShortName()

	ctx, span := tracer.Start(ctx, "reporting.ValidateAndStore",
		trace.WithAttributes(attribute.String("report.type", reportType.ID())))
	defer span.End()

	log := s.logger.With("run", uuid.NewString(), "reportType", reportType.ID())

	validation := s.validator.Validate(ctx, report, consume)
	for _, d := range validation.Diagnostics {
		if d.Severity == SeverityError {
			s.errorHandler(fmt.Sprintf("%s %s error: %s", short, d.Source, d), nil)
		} else {
			s.warnHandler(fmt.Sprintf("%s %s warning: %s", short, d.Source, d))
		}
	}
	if validation.RuleCheckErr != nil {
		s.errorHandler(fmt.Sprintf("Error in %s rule validation", short), validation.RuleCheckErr)
	}

	if len(validation.Markup) == 0 {
		s.errorHandler(fmt.Sprintf("Failed to serialize %s", short), nil)
		span.SetStatus(codes.Error, "empty serialization")
		return Failure, nil
	}
	s.metrics.IncValidated(reportType.ID(), validation.Valid)
	span.SetAttributes(attribute.Bool("report.valid", validation.Valid))

	period, err := report.ReportPeriod()
	if err != nil {
		s.errorHandler(fmt.Sprintf("Failed to determine the reporting period of the %s", short), err)
		span.SetStatus(codes.Error, "no period")
		return Failure, nil
	}
	log = log.With("period", period.String())

	data, err := NewReportData(reportType, period, s.now(), validation.Markup, validation.Valid)
	if err != nil {
		return Failure, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}

	err = s.storage.StoreReport(ctx, data)
	s.metrics.IncStorageWrite(s.backend, "report", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		if errors.Is(err, ErrContractViolation) {
			return Failure, err
		}
		s.errorHandler(fmt.Sprintf("Error storing %s %s", short, period), err)
		return Failure, nil
	}

	log.Info("stored report", "valid", validation.Valid)
	return resultOf(validation.Valid), nil
}

// SendAndRecord sends payload with send and stores the sending report.
//
// A failed send stores nothing. After a successful send the sending report
// is always stored, with or without receipt; if that fails the result is
// Failure although the report was sent.
//
// Unknown report types, an empty payload and a nil send are returned as
// errors wrapping ErrContractViolation, as are contract violations of the
// storage.
func (s *Support) SendAndRecord(ctx context.Context, period Period, reportType ReportType, payload []byte, send Sender) (Result, error) {
	docType, process, err := reportType.Identifiers()
	if err != nil {
		return Failure, err
	}
	if len(payload) == 0 {
		return Failure, fmt.Errorf("%w: %w: empty payload", ErrContractViolation, ErrInvalidInput)
	}
	if send == nil {
		return Failure, fmt.Errorf("%w: %w: no sender", ErrContractViolation, ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "reporting.SendAndRecord",
		trace.WithAttributes(
			attribute.String("report.type", reportType.ID()),
			attribute.String("report.period", period.String()),
		))
	defer span.End()

	log := s.logger.With("run", uuid.NewString(), "reportType", reportType.ID(), "period", period.String())

	sentAt := s.now()
	receipt, err := send(ctx, docType, process, payload)
	s.metrics.IncSent(reportType.ID(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		s.errorHandler(fmt.Sprintf("Failed to send Peppol Report %s for %s via the Peppol Network", reportType.ID(), period), err)
		return Failure, nil
	}
	log.Info("sent report", "receiptBytes", len(receipt))

	data, err := NewSendingReportData(reportType, period, sentAt, string(receipt))
	if err != nil {
		return Failure, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}

	err = s.storage.StoreSendingReport(ctx, data)
	s.metrics.IncStorageWrite(s.backend, "sending_report", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		log.Warn("report was sent but its sending report was not stored")
		if errors.Is(err, ErrContractViolation) {
			return Failure, err
		}
		s.errorHandler(fmt.Sprintf("Error storing sending report of %s for %s", reportType.ID(), period), err)
		return Failure, nil
	}

	return Success, nil
}
