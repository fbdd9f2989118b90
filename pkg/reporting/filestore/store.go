// Package filestore stores report records as XML documents below a base
// directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

// File name suffixes of the two record kinds
const (
	SuffixReport        = "peppol-report.xml"
	SuffixSendingReport = "sending-report.xml"
)

const (
	elemReportData        = "PeppolReportData"
	elemSendingReportData = "SendingReportData"
	elemType              = "ReportType"
	elemYear              = "ReportYear"
	elemMonth             = "ReportMonth"
	elemCreated           = "ReportCreationDT"
	elemReport            = "ReportXML"
	elemSendingReport     = "SendingReport"
	attrValid             = "valid"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
	nameTimeLayout  = "20060102T150405.000Z"
)

// ErrMalformedRecord is returned when a stored file cannot be read back
var ErrMalformedRecord = errors.New("malformed record file")

// NameFunc returns the slash separated path of a record relative to the
// base directory.
type NameFunc func(period reporting.Period, reportType reporting.ReportType, createdAt time.Time, suffix string) string

// DefaultName places records in YYYY/MM directories:
// 2024/02/tsr10-20240305T101500.123Z-peppol-report.xml
func DefaultName(period reporting.Period, reportType reporting.ReportType, createdAt time.Time, suffix string) string {
	return fmt.Sprintf("%04d/%02d/%s-%s-%s",
		period.Year, int(period.Month), reportType.ID(), createdAt.UTC().Format(nameTimeLayout), suffix)
}

// Option configures a Store
type Option func(*Store)

// WithNameFunc replaces the naming strategy.
func WithNameFunc(fn NameFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.name = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store implements reporting.Storage on the local file system.
type Store struct {
	baseDir string
	name    NameFunc
	logger  *slog.Logger
}

var _ reporting.Storage = (*Store)(nil)

// New creates a store rooted at baseDir, creating the directory if needed.
func New(baseDir string, opts ...Option) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: empty base directory", reporting.ErrBackendUnavailable)
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %w", reporting.ErrBackendUnavailable, err)
	}

	s := &Store{
		baseDir: baseDir,
		name:    DefaultName,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("backend", "file", "dir", baseDir)
	return s, nil
}

// BaseDir returns the root directory.
func (s *Store) BaseDir() string { return s.baseDir }

// StoreReport writes a PeppolReportData document.
func (s *Store) StoreReport(ctx context.Context, report *reporting.ReportData) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", reporting.ErrInvalidInput)
	}

	doc, root := newRecord(elemReportData, report.Type(), report.Period(), report.CreatedAt())
	payload := root.CreateElement(elemReport)
	payload.CreateAttr(attrValid, strconv.FormatBool(report.Valid()))
	payload.SetText(report.PayloadString())

	name := s.name(report.Period(), report.Type(), report.CreatedAt(), SuffixReport)
	return s.write(ctx, name, doc)
}

// StoreSendingReport writes a SendingReportData document. The SendingReport
// element is omitted when there is no receipt.
func (s *Store) StoreSendingReport(ctx context.Context, report *reporting.SendingReportData) error {
	if report == nil {
		return fmt.Errorf("%w: nil sending report", reporting.ErrInvalidInput)
	}

	doc, root := newRecord(elemSendingReportData, report.Type(), report.Period(), report.CreatedAt())
	if receipt, ok := report.Receipt(); ok {
		root.CreateElement(elemSendingReport).SetText(receipt)
	}

	name := s.name(report.Period(), report.Type(), report.CreatedAt(), SuffixSendingReport)
	return s.write(ctx, name, doc)
}

func newRecord(rootTag string, reportType reporting.ReportType, period reporting.Period, createdAt time.Time) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(rootTag)
	root.CreateElement(elemType).SetText(reportType.ID())
	root.CreateElement(elemYear).SetText(strconv.Itoa(period.Year))
	root.CreateElement(elemMonth).SetText(strconv.Itoa(int(period.Month)))
	root.CreateElement(elemCreated).SetText(createdAt.UTC().Format(timestampLayout))
	return doc, root
}

// write creates the file exclusively; an existing record is never
// overwritten.
func (s *Store) write(ctx context.Context, name string, doc *etree.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}

	// carriage returns in payloads are written as &#xD; so that reading
	// back does not normalize CRLF line ends
	doc.WriteSettings.CanonicalText = true
	doc.Indent(2)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("closing %s: %w", name, err)
	}

	s.logger.Debug("Stored record", "file", name)
	return nil
}

// resolve maps a record name below the base directory.
func (s *Store) resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: record name %q escapes the base directory", reporting.ErrInvalidInput, name)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// List returns the slash separated names of all records with the given
// suffix, sorted.
func (s *Store) List(ctx context.Context, suffix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// ReadReport reads back a report record.
func (s *Store) ReadReport(name string) (*reporting.ReportData, error) {
	root, header, err := s.read(name, elemReportData)
	if err != nil {
		return nil, err
	}

	payload := root.SelectElement(elemReport)
	if payload == nil {
		return nil, fmt.Errorf("%w: %s has no %s", ErrMalformedRecord, name, elemReport)
	}
	valid, err := strconv.ParseBool(payload.SelectAttrValue(attrValid, "false"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, name, err)
	}
	return reporting.NewReportData(header.reportType, header.period, header.createdAt, []byte(payload.Text()), valid)
}

// ReadSendingReport reads back a sending report record.
func (s *Store) ReadSendingReport(name string) (*reporting.SendingReportData, error) {
	root, header, err := s.read(name, elemSendingReportData)
	if err != nil {
		return nil, err
	}

	var receipt string
	if el := root.SelectElement(elemSendingReport); el != nil {
		receipt = el.Text()
	}
	return reporting.NewSendingReportData(header.reportType, header.period, header.createdAt, receipt)
}

type recordHeader struct {
	reportType reporting.ReportType
	period     reporting.Period
	createdAt  time.Time
}

func (s *Store) read(name, rootTag string) (*etree.Element, recordHeader, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, recordHeader{}, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, recordHeader{}, fmt.Errorf("reading %s: %w", name, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != rootTag {
		return nil, recordHeader{}, fmt.Errorf("%w: %s is not a %s document", ErrMalformedRecord, name, rootTag)
	}

	text := func(tag string) string {
		if el := root.SelectElement(tag); el != nil {
			return strings.TrimSpace(el.Text())
		}
		return ""
	}

	year, err := strconv.Atoi(text(elemYear))
	if err != nil {
		return nil, recordHeader{}, fmt.Errorf("%w: %s: year: %w", ErrMalformedRecord, name, err)
	}
	month, err := strconv.Atoi(text(elemMonth))
	if err != nil {
		return nil, recordHeader{}, fmt.Errorf("%w: %s: month: %w", ErrMalformedRecord, name, err)
	}
	period, err := reporting.NewPeriod(year, time.Month(month))
	if err != nil {
		return nil, recordHeader{}, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, name, err)
	}
	createdAt, err := time.Parse(timestampLayout, text(elemCreated))
	if err != nil {
		return nil, recordHeader{}, fmt.Errorf("%w: %s: creation time: %w", ErrMalformedRecord, name, err)
	}

	return root, recordHeader{
		reportType: reporting.ReportType(text(elemType)),
		period:     period,
		createdAt:  createdAt,
	}, nil
}
