package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducer_NoBrokers(t *testing.T) {
	p := NewProducer(nil)
	assert.Nil(t, p)
	assert.NoError(t, p.PublishEvent(context.Background(), "user_events", "1", map[string]any{"a": 1}))
	assert.NoError(t, p.Close())
}

func TestPublishEvent_WritesJSON(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWith(w)

	err := p.PublishEvent(context.Background(), "order_events", "42", map[string]any{"type": "order_created", "orderID": 42})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "order_events", msg.Topic)
	assert.Equal(t, "42", string(msg.Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "order_created", got["type"])
	assert.EqualValues(t, 42, got["orderID"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishEvent_Errors(t *testing.T) {
	p := NewProducerWith(&recordingWriter{err: errors.New("broker down")})
	err := p.PublishEvent(context.Background(), "cart_events", "1", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart_events")

	err = p.PublishEvent(context.Background(), "cart_events", "1", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json.Marshal")
}
