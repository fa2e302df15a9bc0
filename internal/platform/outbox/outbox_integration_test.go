//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"quorum/internal/platform/kafka"
	"quorum/internal/platform/outbox"
	id "quorum/pkg/domain"
	audit "quorum/pkg/platform/audit"
	auditpg "quorum/pkg/platform/audit/store/postgres"
	"quorum/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	topic    string
}

func TestOutboxSuite(t *testing.T) {
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.topic = "quorum.audit.test"
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *OutboxSuite) TestAuditEventReachesKafka() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := auditpg.New(s.postgres.DB)
	s.Require().NoError(store.Append(ctx, audit.Event{
		Timestamp: time.Now(),
		Action:    string(audit.EventDelegateRegistered),
		Subject:   "delegate-1",
		State:     id.StateCode("SP"),
		Detail:    "racial",
	}))

	producer, err := kafka.NewProducer(s.kafka.Brokers, s.topic, nil)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(producer.EnsureTopic(ctx, 1, 1))

	pgStore := outbox.NewPostgresStore(s.postgres.DB)
	worker := outbox.NewWorker(pgStore, producer)
	n, err := worker.Tick(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, err := pgStore.Pending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.kafka.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollRecords(ctx, 1)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("delegate-1", string(records[0].Key))

	var payload auditpg.Payload
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Equal("delegate_registered", payload.Action)
	s.Equal("SP", payload.State)
	s.Equal("compliance", payload.Category)
}

func (s *OutboxSuite) TestFailedPublishKeepsEntries() {
	ctx := context.Background()
	store := auditpg.New(s.postgres.DB)
	s.Require().NoError(store.Append(ctx, audit.Event{
		Timestamp: time.Now(),
		Action:    string(audit.EventQuotaFull),
		Subject:   "delegate-2",
	}))

	pgStore := outbox.NewPostgresStore(s.postgres.DB)
	_, err := pgStore.ProcessPending(ctx, 10, func(context.Context, []outbox.Entry) error {
		return context.DeadlineExceeded
	})
	s.Require().Error(err)

	pending, err := pgStore.Pending(ctx)
	s.Require().NoError(err)
	s.Equal(1, pending)
}
