//go:build integration

package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

type MongoStoreSuite struct {
	suite.Suite
	container *tcmongo.MongoDBContainer
	client    *mongo.Client
	db        *mongo.Database
}

func TestMongoStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MongoStoreSuite))
}

func (s *MongoStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	s.client, err = Connect(ctx, uri)
	s.Require().NoError(err)
}

func (s *MongoStoreSuite) SetupTest() {
	s.db = s.client.Database("peppol_" + bson.NewObjectID().Hex())
}

func (s *MongoStoreSuite) TearDownSuite() {
	if s.client != nil {
		s.Require().NoError(s.client.Disconnect(context.Background()))
	}
	if s.container != nil {
		s.Require().NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *MongoStoreSuite) TestDisconnectedClientIsNotWritable() {
	ctx := context.Background()
	uri, err := s.container.ConnectionString(ctx)
	s.Require().NoError(err)
	client, err := Connect(ctx, uri)
	s.Require().NoError(err)
	s.Require().NoError(client.Disconnect(ctx))

	r, err := reporting.NewReportData(reporting.TypeTSR, reporting.Period{Year: 2024, Month: time.May}, time.Now(), []byte("<TSR/>"), true)
	s.Require().NoError(err)
	err = New(client.Database("peppol")).StoreReport(ctx, r)
	s.ErrorIs(err, reporting.ErrBackendUnavailable)
}

func (s *MongoStoreSuite) TestReportRoundTrip() {
	ctx := context.Background()
	store := New(s.db)

	may := reporting.Period{Year: 2024, Month: time.May}
	june := reporting.Period{Year: 2024, Month: time.June}
	created := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	for i, p := range []reporting.Period{may, june, may} {
		r, err := reporting.NewReportData(reporting.TypeTSR, p, created.Add(time.Duration(i)*time.Minute), []byte("<TSR/>"), i == 0)
		s.Require().NoError(err)
		s.Require().NoError(store.StoreReport(ctx, r))
	}

	found, err := store.FindReports(ctx, may)
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.True(found[0].Valid())
	s.False(found[1].Valid())
	s.True(found[0].CreatedAt().Before(found[1].CreatedAt()))

	count, err := s.db.Collection(DefaultReportsCollection).CountDocuments(ctx, bson.M{})
	s.Require().NoError(err)
	s.EqualValues(3, count)
}

func (s *MongoStoreSuite) TestSendingReportsCustomCollection() {
	ctx := context.Background()
	store := New(s.db, WithSendingReportsCollection("sent"))
	period := reporting.Period{Year: 2025, Month: time.January}

	withReceipt, err := reporting.NewSendingReportData(reporting.TypeEUSR, period, time.Now(), "<Receipt/>")
	s.Require().NoError(err)
	withoutReceipt, err := reporting.NewSendingReportData(reporting.TypeEUSR, period, time.Now().Add(time.Second), "")
	s.Require().NoError(err)

	s.Require().NoError(store.StoreSendingReport(ctx, withReceipt))
	s.Require().NoError(store.StoreSendingReport(ctx, withoutReceipt))

	found, err := store.FindSendingReports(ctx, period)
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	receipt, ok := found[0].Receipt()
	s.True(ok)
	s.Equal("<Receipt/>", receipt)
	s.False(found[1].HasReceipt())

	missing, err := s.db.Collection("sent").CountDocuments(ctx, bson.M{"payload": bson.M{"$exists": false}})
	s.Require().NoError(err)
	s.EqualValues(1, missing)
}
