package report

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

// Marshaller serializes TSR and EUSR documents. Reports failing the
// structural checks are not serialized; the failures come back as schema
// diagnostics.
type Marshaller struct {
	validate *validator.Validate
}

// NewMarshaller creates a marshaller.
func NewMarshaller() *Marshaller {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(Date); ok {
			return d.Time
		}
		return nil
	}, Date{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("xml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		if i := strings.LastIndex(name, " "); i >= 0 {
			name = name[i+1:]
		}
		return name
	})
	return &Marshaller{validate: v}
}

// Marshal implements reporting.Marshaller.
func (m *Marshaller) Marshal(r reporting.Report) ([]byte, []reporting.Diagnostic) {
	switch r.(type) {
	case *TSR, *EUSR:
	default:
		return nil, []reporting.Diagnostic{{
			Severity: reporting.SeverityError,
			Source:   reporting.SourceSchema,
			Message:  fmt.Sprintf("unsupported report object %T", r),
		}}
	}

	if diags := m.check(r); len(diags) > 0 {
		return nil, diags
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, []reporting.Diagnostic{{
			Severity: reporting.SeverityError,
			Source:   reporting.SourceSchema,
			Message:  "serialization failed: " + err.Error(),
		}}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (m *Marshaller) check(r reporting.Report) []reporting.Diagnostic {
	err := m.validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []reporting.Diagnostic{{
			Severity: reporting.SeverityError,
			Source:   reporting.SourceSchema,
			Message:  err.Error(),
		}}
	}

	diags := make([]reporting.Diagnostic, 0, len(verrs))
	for _, fe := range verrs {
		diags = append(diags, reporting.Diagnostic{
			Severity: reporting.SeverityError,
			Source:   reporting.SourceSchema,
			Location: "/" + strings.ReplaceAll(fe.Namespace(), ".", "/"),
			Message:  describe(fe),
		})
	}
	return diags
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fe.Field() + " must not be negative"
	case "min":
		return fe.Field() + " needs at least " + fe.Param() + " element(s)"
	case "oneof":
		return fmt.Sprintf("%s %q is not one of %s", fe.Field(), fmt.Sprint(fe.Value()), fe.Param())
	}
	return fmt.Sprintf("%s failed %s check", fe.Field(), fe.Tag())
}

// Parse reads a TSR or EUSR document.
func Parse(data []byte) (reporting.Report, error) {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}

	switch probe.XMLName {
	case xml.Name{Space: NamespaceTSR, Local: "TransactionStatisticsReport"}:
		var r TSR
		if err := xml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parsing TSR: %w", err)
		}
		return &r, nil
	case xml.Name{Space: NamespaceEUSR, Local: "EndUserStatisticsReport"}:
		var r EUSR
		if err := xml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parsing EUSR: %w", err)
		}
		return &r, nil
	}
	return nil, fmt.Errorf("%w: unknown root element {%s}%s", reporting.ErrUnsupportedReportType, probe.XMLName.Space, probe.XMLName.Local)
}
