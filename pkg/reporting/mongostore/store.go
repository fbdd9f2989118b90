// Package mongostore stores report records in MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

// Default collection names
const (
	DefaultReportsCollection        = "peppol-reports"
	DefaultSendingReportsCollection = "peppol-reporting-sending-reports"
)

// Query fields shared by both collections
const (
	fieldYear       = "year"
	fieldMonth      = "month"
	fieldCreationDT = "creationdt"
)

// Collection is the part of *mongo.Collection the store writes through
type Collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

type reportDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	ReportType   string        `bson:"reporttype"`
	Year         int           `bson:"year"`
	Month        int           `bson:"month"`
	CreationDT   time.Time     `bson:"creationdt"`
	Payload      string        `bson:"payload"`
	PayloadValid bool          `bson:"payloadvalid"`
}

type sendingReportDocument struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	ReportType string        `bson:"reporttype"`
	Year       int           `bson:"year"`
	Month      int           `bson:"month"`
	CreationDT time.Time     `bson:"creationdt"`
	Payload    string        `bson:"payload,omitempty"`
}

// Option configures a Store
type Option func(*config)

type config struct {
	reports        string
	sendingReports string
	logger         *slog.Logger
}

// WithReportsCollection overrides the report collection name.
func WithReportsCollection(name string) Option {
	return func(c *config) {
		if name != "" {
			c.reports = name
		}
	}
}

// WithSendingReportsCollection overrides the sending report collection name.
func WithSendingReportsCollection(name string) Option {
	return func(c *config) {
		if name != "" {
			c.sendingReports = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Store implements reporting.Storage on MongoDB.
type Store struct {
	reports        Collection
	sendingReports Collection
	// writable reports whether the deployment accepts writes; nil skips
	// the check
	writable func(ctx context.Context) error
	logger   *slog.Logger
}

var _ reporting.Storage = (*Store)(nil)

// New creates a store on db. A nil database leaves the store unusable;
// every write then fails as an operational error. Each write first checks
// that a primary is reachable.
func New(db *mongo.Database, opts ...Option) *Store {
	cfg := config{
		reports:        DefaultReportsCollection,
		sendingReports: DefaultSendingReportsCollection,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store{logger: cfg.logger.With("backend", "mongodb")}
	if db != nil {
		s.reports = db.Collection(cfg.reports)
		s.sendingReports = db.Collection(cfg.sendingReports)
		client := db.Client()
		s.writable = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}
		s.logger = s.logger.With("database", db.Name())
	}
	return s
}

// NewWithCollections creates a store on explicit collections.
func NewWithCollections(reports, sendingReports Collection, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		reports:        present(reports),
		sendingReports: present(sendingReports),
		logger:         logger.With("backend", "mongodb"),
	}
}

// present maps a nil *mongo.Collection held in the interface to nil.
func present(c Collection) Collection {
	if mc, ok := c.(*mongo.Collection); ok && mc == nil {
		return nil
	}
	return c
}

// Connect opens a client for uri and verifies that a writable primary is
// reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to MongoDB: %w", reporting.ErrBackendUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: pinging MongoDB: %w", reporting.ErrBackendUnavailable, err)
	}
	return client, nil
}

// StoreReport inserts one report document.
func (s *Store) StoreReport(ctx context.Context, report *reporting.ReportData) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", reporting.ErrInvalidInput)
	}
	doc := reportDocument{
		ReportType:   report.Type().ID(),
		Year:         report.Period().Year,
		Month:        int(report.Period().Month),
		CreationDT:   report.CreatedAt(),
		Payload:      report.PayloadString(),
		PayloadValid: report.Valid(),
	}
	return s.insert(ctx, s.reports, "report", doc)
}

// StoreSendingReport inserts one sending report document. The payload field
// is only set when there is a receipt.
func (s *Store) StoreSendingReport(ctx context.Context, report *reporting.SendingReportData) error {
	if report == nil {
		return fmt.Errorf("%w: nil sending report", reporting.ErrInvalidInput)
	}
	receipt, _ := report.Receipt()
	doc := sendingReportDocument{
		ReportType: report.Type().ID(),
		Year:       report.Period().Year,
		Month:      int(report.Period().Month),
		CreationDT: report.CreatedAt(),
		Payload:    receipt,
	}
	return s.insert(ctx, s.sendingReports, "sending report", doc)
}

func (s *Store) insert(ctx context.Context, coll Collection, kind string, doc any) error {
	if coll == nil {
		return fmt.Errorf("%w: no MongoDB collection for %s", reporting.ErrBackendUnavailable, kind)
	}
	if s.writable != nil {
		if err := s.writable(ctx); err != nil {
			return fmt.Errorf("%w: MongoDB is not writable: %w", reporting.ErrBackendUnavailable, err)
		}
	}

	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", kind, err)
	}
	if res == nil || !res.Acknowledged {
		return fmt.Errorf("%w: insert of %s was not acknowledged", reporting.ErrContractViolation, kind)
	}

	s.logger.Debug("Stored record", "kind", kind, "id", res.InsertedID)
	return nil
}

// FindReports returns the reports of a period ordered by creation time.
func (s *Store) FindReports(ctx context.Context, period reporting.Period) ([]*reporting.ReportData, error) {
	var docs []reportDocument
	if err := s.find(ctx, s.reports, period, &docs); err != nil {
		return nil, err
	}

	out := make([]*reporting.ReportData, 0, len(docs))
	for _, d := range docs {
		r, err := reporting.NewReportData(reporting.ReportType(d.ReportType),
			reporting.Period{Year: d.Year, Month: time.Month(d.Month)}, d.CreationDT, []byte(d.Payload), d.PayloadValid)
		if err != nil {
			return nil, fmt.Errorf("decoding report %s: %w", d.ID.Hex(), err)
		}
		out = append(out, r)
	}
	return out, nil
}

// FindSendingReports returns the sending reports of a period ordered by
// creation time.
func (s *Store) FindSendingReports(ctx context.Context, period reporting.Period) ([]*reporting.SendingReportData, error) {
	var docs []sendingReportDocument
	if err := s.find(ctx, s.sendingReports, period, &docs); err != nil {
		return nil, err
	}

	out := make([]*reporting.SendingReportData, 0, len(docs))
	for _, d := range docs {
		r, err := reporting.NewSendingReportData(reporting.ReportType(d.ReportType),
			reporting.Period{Year: d.Year, Month: time.Month(d.Month)}, d.CreationDT, d.Payload)
		if err != nil {
			return nil, fmt.Errorf("decoding sending report %s: %w", d.ID.Hex(), err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, coll Collection, period reporting.Period, results any) error {
	if coll == nil {
		return reporting.ErrBackendUnavailable
	}

	filter := bson.M{fieldYear: period.Year, fieldMonth: int(period.Month)}
	opts := options.Find().SetSort(bson.D{{Key: fieldCreationDT, Value: 1}})

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("querying %s: %w", period, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, results); err != nil {
		return fmt.Errorf("reading %s: %w", period, err)
	}
	return nil
}
