package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	applogger "TarLab/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type handlerFunc struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h handlerFunc) Topic() string                            { return h.topic }
func (h handlerFunc) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

func testConsumer(retries int) (*Consumer, *fakeWriter) {
	cfg := &ConsumerConfig{
		WorkerCount: 1,
		BufferSize:  1,
		RetryMax:    retries,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		DLQTopic:    "jobs.dlq",
	}
	c := newConsumer(cfg, applogger.Nop())
	dlq := &fakeWriter{}
	c.dlq = dlq
	return c, dlq
}

func TestProducerEncodesPayloads(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")

	require.NoError(t, p.Publish(context.Background(), "results", []byte("run-1"), map[string]int{"k": 1}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "plain"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "results", w.msgs[0].Topic)
	assert.Equal(t, []byte("run-1"), w.msgs[0].Key)
	var got map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 1, got["k"])
	assert.Equal(t, []byte("plain"), w.msgs[1].Value)
	assert.Nil(t, w.msgs[1].Key)
}

func TestProducerWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "none")
	err := p.Publish(context.Background(), "results", nil, []byte("x"))
	assert.ErrorIs(t, err, boom)
}

func TestConsumerRetriesTransientErrors(t *testing.T) {
	c, dlq := testConsumer(3)
	calls := 0
	c.RegisterHandler(handlerFunc{topic: "jobs", fn: func(context.Context, []byte) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	}})

	c.process(&message{topic: "jobs", km: kafka.Message{Value: []byte("{}")}})
	assert.Equal(t, 3, calls)
	assert.Empty(t, dlq.msgs)
}

func TestConsumerMarksLastAttempt(t *testing.T) {
	c, dlq := testConsumer(2)
	var attempts []int
	var last []bool
	c.RegisterHandler(handlerFunc{topic: "jobs", fn: func(ctx context.Context, _ []byte) error {
		attempts = append(attempts, AttemptFromContext(ctx))
		last = append(last, LastAttempt(ctx))
		return errors.New("temporary")
	}})

	c.process(&message{topic: "jobs", km: kafka.Message{Value: []byte("{}")}})
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []bool{false, false, true}, last)
	assert.Len(t, dlq.msgs, 1)

	assert.True(t, LastAttempt(context.Background()))
	assert.Zero(t, AttemptFromContext(context.Background()))
}

func TestConsumerSendsPermanentErrorsToDLQ(t *testing.T) {
	c, dlq := testConsumer(5)
	calls := 0
	c.RegisterHandler(handlerFunc{topic: "jobs", fn: func(context.Context, []byte) error {
		calls++
		return Permanent(errors.New("bad series"))
	}})

	c.process(&message{topic: "jobs", km: kafka.Message{Key: []byte("k"), Value: []byte("payload")}})
	assert.Equal(t, 1, calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "jobs.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, []byte("payload"), dlq.msgs[0].Value)
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[0].Key)
}

func TestConsumerRecoversHandlerPanic(t *testing.T) {
	c, dlq := testConsumer(2)
	c.RegisterHandler(handlerFunc{topic: "jobs", fn: func(context.Context, []byte) error {
		panic("nil map")
	}})

	assert.NotPanics(t, func() {
		c.process(&message{topic: "jobs", km: kafka.Message{Value: []byte("x")}})
	})
	assert.Len(t, dlq.msgs, 1)
}

func TestTraceHookThroughChain(t *testing.T) {
	c, _ := testConsumer(0)
	var seen string
	var afterOrder []string
	c.WithConsumerHook(NewHookChain(
		TraceHook(),
		HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { afterOrder = append(afterOrder, "first") }},
		HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { afterOrder = append(afterOrder, "second") }},
		nil,
	))
	c.RegisterHandler(handlerFunc{topic: "jobs", fn: func(ctx context.Context, _ []byte) error {
		seen = TraceIDFromContext(ctx)
		return nil
	}})

	c.process(&message{topic: "jobs", km: kafka.Message{
		Value:   []byte("x"),
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}},
	}})
	assert.Equal(t, "abc", seen)
	assert.Equal(t, []string{"second", "first"}, afterOrder)
}

func TestHookChainPanicBecomesError(t *testing.T) {
	chain := NewHookChain(HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("boom")
	}})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	assert.ErrorContains(t, err, "hook panic")
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}
