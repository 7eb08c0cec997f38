package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"idle-market/config"
	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleEvent() domain.ListingEvent {
	l := &domain.Listing{
		ID:       uuid.New(),
		SellerID: uuid.New(),
		Item:     "carrot",
		Currency: "coins",
		Price:    5,
		Amount:   6,
		Status:   domain.ListingStatusActive,
	}
	return domain.NewListingEvent(domain.EventListingPurchased, l, uuid.New(), 4, 0)
}

// ==================== Fanout ====================

func TestFanout_PublishesToEverySink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broken := mocks.NewMockEventPublisher(ctrl)
	healthy := mocks.NewMockEventPublisher(ctrl)
	event := sampleEvent()

	broken.EXPECT().Publish(gomock.Any(), event).Return(errors.New("broker unreachable"))
	healthy.EXPECT().Publish(gomock.Any(), event).Return(nil)

	f := NewFanout(Sink{Name: "kafka", Publisher: broken}, Sink{Name: "websocket", Publisher: healthy})
	err := f.Publish(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: broker unreachable")
	assert.NotContains(t, err.Error(), "websocket")
}

func TestFanout_NoSinks(t *testing.T) {
	assert.NoError(t, NewFanout().Publish(context.Background(), sampleEvent()))
}

// ==================== Kafka ====================

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	event := sampleEvent()

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, event.ListingID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "listing.purchased", string(msg.Headers[0].Value))

	var decoded domain.ListingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ListingID, decoded.ListingID)
	assert.Equal(t, int64(4), decoded.Quantity)
	assert.Equal(t, int64(6), decoded.Remaining)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: kafka.LeaderNotAvailable})

	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, kafka.LeaderNotAvailable)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(config.KafkaConfig{
		Brokers: []string{"kafka-1:9092", "kafka-2:9092"},
		Topic:   "listing-events",
	})
	defer w.Close()

	assert.Equal(t, "listing-events", w.Topic)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", w.Addr.String())
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, 1, w.BatchSize, "each publish flushes without waiting for the batch timer")
	assert.Equal(t, 5*time.Millisecond, w.BatchTimeout)
	assert.Equal(t, 5*time.Second, w.WriteTimeout)
}

func TestNewKafkaWriter_ConfiguredBatchTimeout(t *testing.T) {
	w := NewKafkaWriter(config.KafkaConfig{
		Brokers:      []string{"kafka-1:9092"},
		Topic:        "listing-events",
		BatchTimeout: time.Millisecond,
		WriteTimeout: time.Second,
	})
	defer w.Close()

	assert.Equal(t, 1, w.BatchSize)
	assert.Equal(t, time.Millisecond, w.BatchTimeout)
	assert.Equal(t, time.Second, w.WriteTimeout)
}

// ==================== WebSocket hub ====================

func TestWSHub_BroadcastsToClients(t *testing.T) {
	hub := NewWSHub(8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/api/v1/feed", hub.Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	event := sampleEvent()
	require.NoError(t, hub.Publish(context.Background(), event))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got domain.ListingEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, event.ListingID, got.ListingID)
	assert.Equal(t, domain.EventListingPurchased, got.Type)
}

func TestWSHub_DropsWhenQueueFull(t *testing.T) {
	hub := NewWSHub(1, zerolog.Nop())

	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))
	err := hub.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestWSHub_StopsOnContextCancel(t *testing.T) {
	hub := NewWSHub(8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Zero(t, hub.Clients())
}
