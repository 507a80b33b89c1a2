// internal/sink/kafka_test.go
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/quote-relay/internal/quote"
	"github.com/YaganovValera/quote-relay/pkg/kafka"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

type message struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	mu    sync.Mutex
	sent  []message
	fails int
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, message{topic: topic, key: string(key), value: value})
	return nil
}

func (f *fakeProducer) Ping(context.Context) error { return nil }
func (f *fakeProducer) Close() error               { return nil }

func (f *fakeProducer) messages() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message(nil), f.sent...)
}

func run(t *testing.T, p *KafkaPublisher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"noBrokers", Config{Enabled: true, Topic: "q"}, true},
		{"noTopic", Config{Enabled: true, Producer: kafka.Config{Brokers: []string{"b:9092"}}}, true},
		{"ok", Config{Enabled: true, Topic: "q", Producer: kafka.Config{Brokers: []string{"b:9092"}}}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.cfg.Validate(); (err != nil) != c.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestKafkaPublisher_PublishesKeyedJSON(t *testing.T) {
	prod := &fakeProducer{}
	p, err := NewKafkaPublisher(Config{Topic: "quotes"}, prod, logger.Nop())
	require.NoError(t, err)
	run(t, p)

	p.Publish(context.Background(), quote.Quote{ID: "AAPL", Price: 190, Time: 1})
	p.Publish(context.Background(), quote.Quote{ID: "MSFT", Price: 410, Time: 2})

	require.Eventually(t, func() bool { return len(prod.messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := prod.messages()
	assert.Equal(t, "quotes", msgs[0].topic)
	assert.Equal(t, "AAPL", msgs[0].key)
	assert.Equal(t, "MSFT", msgs[1].key)

	var q quote.Quote
	require.NoError(t, json.Unmarshal(msgs[1].value, &q))
	assert.Equal(t, float32(410), q.Price)
}

func TestKafkaPublisher_DropsWhenBufferFull(t *testing.T) {
	prod := &fakeProducer{}
	p, err := NewKafkaPublisher(Config{BufferSize: 1}, prod, logger.Nop())
	require.NoError(t, err)

	// Run не запущен: второй вызов не должен блокироваться
	p.Publish(context.Background(), quote.Quote{ID: "AAPL", Time: 1})
	p.Publish(context.Background(), quote.Quote{ID: "AAPL", Time: 2})
	assert.Len(t, p.buf, 1)

	run(t, p)
	require.Eventually(t, func() bool { return len(prod.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "quotes.raw", prod.messages()[0].topic)
}

func TestKafkaPublisher_ContinuesAfterPublishError(t *testing.T) {
	prod := &fakeProducer{fails: 1}
	p, err := NewKafkaPublisher(Config{}, prod, logger.Nop())
	require.NoError(t, err)
	run(t, p)

	p.Publish(context.Background(), quote.Quote{ID: "LOST"})
	p.Publish(context.Background(), quote.Quote{ID: "KEPT"})

	require.Eventually(t, func() bool { return len(prod.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "KEPT", prod.messages()[0].key)
}

func TestNewKafkaPublisher_RequiresProducer(t *testing.T) {
	_, err := NewKafkaPublisher(Config{}, nil, logger.Nop())
	assert.Error(t, err)
}
