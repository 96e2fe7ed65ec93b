package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func stockEvent(kind string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "product",
		AggregateID:   uuid.NewString(),
		EventType:     kind,
		Payload:       json.RawMessage(`{"event":"` + kind + `","product_name":"Test Product"}`),
		TargetStream:  StockEventStream,
	}
}

func TestRelayProcessEvents(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("publishes and marks processed", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		events := []*OutboxEvent{stockEvent("out_of_stock"), stockEvent("back_in_stock")}

		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Stream == StockEventStream
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[0].ID).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[1].ID).Return(nil)

		err := relay.processEvents(ctx)
		assert.NoError(t, err)

		mockRedis.AssertNumberOfCalls(t, "XAdd", 2)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("publish failure marks failed and continues", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		events := []*OutboxEvent{stockEvent("out_of_stock")}

		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis down"))
		mockOutbox.On("MarkFailed", ctx, events[0].ID, mock.Anything).Return(nil)

		err := relay.processEvents(ctx)
		assert.NoError(t, err)

		mockOutbox.AssertCalled(t, "MarkFailed", ctx, events[0].ID, mock.Anything)
		mockOutbox.AssertNotCalled(t, "MarkProcessed", ctx, events[0].ID)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		err := relay.processEvents(ctx)
		assert.NoError(t, err)
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("malformed payload goes to failed", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		bad := stockEvent("out_of_stock")
		bad.Payload = json.RawMessage(`not json`)

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{bad}, nil)
		mockOutbox.On("MarkFailed", ctx, bad.ID, mock.Anything).Return(nil)

		err := relay.processEvents(ctx)
		assert.NoError(t, err)

		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
		mockOutbox.AssertCalled(t, "MarkFailed", ctx, bad.ID, mock.Anything)
	})
}

func TestNextRetryTime(t *testing.T) {
	first := nextRetryTime(1)
	second := nextRetryTime(2)
	assert.True(t, second.After(first))

	// Backoff is capped, so very high retry counts stay bounded.
	capped := nextRetryTime(20)
	assert.WithinDuration(t, nextRetryTime(30), capped, time.Second)
}
