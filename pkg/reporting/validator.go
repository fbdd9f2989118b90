package reporting

import (
	"context"
	"fmt"
	"log/slog"
)

// Severity of a diagnostic
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic sources
const (
	SourceSchema = "schema"
	SourceRules  = "rules"
)

// Diagnostic is a single finding of the serialization or rule step
type Diagnostic struct {
	Severity Severity
	Source   string
	// RuleID identifies the failed rule, if any
	RuleID string
	// Location points into the report, e.g. a field path
	Location string
	Message  string
}

func (d Diagnostic) String() string {
	s := d.Message
	if d.RuleID != "" {
		s = "[" + d.RuleID + "] " + s
	}
	if d.Location != "" {
		s += " (" + d.Location + ")"
	}
	return s
}

// Report is a report domain object
type Report interface {
	ReportType() ReportType
	// ReportPeriod returns the reporting month of the report content
	ReportPeriod() (Period, error)
}

// Marshaller serializes a report, collecting diagnostics. Empty output means
// serialization failed.
type Marshaller interface {
	Marshal(report Report) ([]byte, []Diagnostic)
}

// RuleChecker runs business rules over serialized markup. An error means the
// checker itself failed.
type RuleChecker interface {
	Check(ctx context.Context, reportType ReportType, markup []byte) ([]Diagnostic, error)
}

// Validation is the outcome of Validator.Validate
type Validation struct {
	Markup      []byte
	Valid       bool
	Diagnostics []Diagnostic
	// RuleCheckErr is set when the rule checker failed
	RuleCheckErr error
}

// Errors returns the error diagnostics.
func (v Validation) Errors() []Diagnostic {
	return v.filter(SeverityError)
}

// Warnings returns the warning diagnostics.
func (v Validation) Warnings() []Diagnostic {
	return v.filter(SeverityWarning)
}

func (v Validation) filter(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range v.Diagnostics {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Validator serializes a report and checks it
type Validator struct {
	marshaller Marshaller
	rules      RuleChecker
	logger     *slog.Logger
}

// NewValidator creates a validator. rules may be nil to skip the rule step.
func NewValidator(marshaller Marshaller, rules RuleChecker, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{marshaller: marshaller, rules: rules, logger: logger}
}

// Validate serializes report and runs the rule checker over the markup.
// consume, if not nil, receives the markup exactly once when serialization
// produced output, before the rules run. The result is valid when no
// diagnostic has error severity and the rule checker did not fail.
func (v *Validator) Validate(ctx context.Context, report Report, consume func([]byte)) Validation {
	markup, diags := v.marshaller.Marshal(report)
	result := Validation{Diagnostics: diags}
	if len(markup) == 0 {
		return result
	}
	result.Markup = markup

	if consume != nil {
		consume(markup)
	}

	if v.rules != nil {
		findings, err := v.rules.Check(ctx, report.ReportType(), markup)
		if err != nil {
			v.logger.Error("rule validation failed", "reportType", report.ReportType().ID(), "error", err)
			result.RuleCheckErr = fmt.Errorf("%s rule validation: %w", report.ReportType().ShortName(), err)
		}
		result.Diagnostics = append(result.Diagnostics, findings...)
	}

	result.Valid = result.RuleCheckErr == nil && len(result.Errors()) == 0
	return result
}
