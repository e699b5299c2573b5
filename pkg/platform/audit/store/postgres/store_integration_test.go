//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "ekyc/pkg/platform/audit"
	"ekyc/pkg/platform/audit/store/postgres"
	"ekyc/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) TestAppendAndListBySubject() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	event := audit.Event{
		ID:           uuid.NewString(),
		Timestamp:    now,
		Subject:      "digest-a",
		Action:       string(audit.EventDocumentExtracted),
		DocumentType: "SG_PASSPORT",
		Decision:     "extracted",
		Confidence:   0.95,
		FailedFields: 1,
		RequestID:    "req-1",
		ClientIP:     "10.0.0.1",
	}
	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event), "re-append is idempotent")

	events, err := s.store.ListBySubject(ctx, "digest-a")
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	got := events[0]
	s.Equal(event.ID, got.ID)
	s.Equal(audit.CategoryCompliance, got.Category)
	s.True(now.Equal(got.Timestamp))
	s.Equal("SG_PASSPORT", got.DocumentType)
	s.InDelta(0.95, got.Confidence, 1e-9)
	s.Equal(1, got.FailedFields)
	s.Equal("10.0.0.1", got.ClientIP)
}

func (s *AuditStoreSuite) TestListRecent() {
	ctx := context.Background()
	base := time.Now().UTC()

	batch := make([]audit.Event, 0, 5)
	for i := range 5 {
		batch = append(batch, audit.Event{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Subject:   "digest-b",
			Action:    string(audit.EventDocumentRejected),
			Reason:    string(rune('a' + i)),
		})
	}
	s.Require().NoError(s.store.AppendBatch(ctx, batch))

	recent, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("e", recent[0].Reason)
	s.Equal("d", recent[1].Reason)
}

func (s *AuditStoreSuite) TestConcurrentAppends() {
	ctx := context.Background()
	const goroutines = 25

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.Append(ctx, audit.Event{
				Timestamp: time.Now(),
				Subject:   "digest-c",
				Action:    string(audit.EventExtractionBackendUnavailable),
			}))
		}()
	}
	wg.Wait()

	events, err := s.store.ListBySubject(ctx, "digest-c")
	s.Require().NoError(err)
	s.Len(events, goroutines)
	s.Equal(audit.CategoryOperations, events[0].Category)
}

func (s *AuditStoreSuite) TestRejectsMalformedID() {
	err := s.store.Append(context.Background(), audit.Event{ID: "not-a-uuid", Action: "x", Timestamp: time.Now()})
	s.Error(err)
}

func (s *AuditStoreSuite) TestAppendBatchIsAtomic() {
	ctx := context.Background()
	now := time.Now().UTC()

	good := audit.Event{ID: uuid.NewString(), Subject: "digest-batch", Action: string(audit.EventDocumentExtracted), Timestamp: now}
	bad := audit.Event{ID: "not-a-uuid", Subject: "digest-batch", Action: string(audit.EventDocumentRejected), Timestamp: now}

	s.Error(s.store.AppendBatch(ctx, []audit.Event{good, bad}))
	events, err := s.store.ListBySubject(ctx, "digest-batch")
	s.Require().NoError(err)
	s.Empty(events, "failed batch leaves nothing behind")

	second := audit.Event{ID: uuid.NewString(), Subject: "digest-batch", Action: string(audit.EventDocumentRejected), Timestamp: now.Add(time.Second)}
	s.Require().NoError(s.store.AppendBatch(ctx, []audit.Event{good, second}))
	events, err = s.store.ListBySubject(ctx, "digest-batch")
	s.Require().NoError(err)
	s.Len(events, 2)
}
