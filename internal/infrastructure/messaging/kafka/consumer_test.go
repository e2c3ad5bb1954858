package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/pkg/types/common"
)

// queueReader serves queued messages, then blocks until the context ends.
type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *queueReader) Close() error {
	r.closed = true
	return nil
}

func (r *queueReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*common.ProducerMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg *common.ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "legallens-worker",
		Topics:  []string{TopicKnowledgeIngest},
		RetryConfig: RetryConfig{
			MaxRetries:   2,
			RetryBackoff: time.Millisecond,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(testConsumerConfig()))

	cfg := testConsumerConfig()
	cfg.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testConsumerConfig()
	cfg.Topics = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testConsumerConfig()
	cfg.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestConsumer_DispatchAndCommit(t *testing.T) {
	reader := &queueReader{queue: []kafka.Message{
		{Topic: TopicKnowledgeIngest, Offset: 0, Value: []byte("a"), Headers: []kafka.Header{{Key: "event_type", Value: []byte("knowledge.ingest")}}},
		{Topic: "unknown.topic", Offset: 1, Value: []byte("b")},
	}}
	c := newConsumer(reader, nil, testConsumerConfig(), nil, nil)

	got := make(chan *common.Message, 1)
	c.Subscribe(TopicKnowledgeIngest, func(_ context.Context, msg *common.Message) error {
		got <- msg
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	select {
	case msg := <-got:
		assert.Equal(t, []byte("a"), msg.Value)
		assert.Equal(t, "knowledge.ingest", msg.Headers["event_type"])
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Eventually(t, func() bool { return reader.commits() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
	assert.Equal(t, int64(1), c.GetMetrics().MessagesProcessed.Load())
}

func TestConsumer_RetryThenDeadLetter(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.RetryConfig.DeadLetterTopic = TopicDeadLetter
	dl := &recordingPublisher{}
	c := newConsumer(&queueReader{}, dl, cfg, nil, nil)

	calls := 0
	handler := func(context.Context, *common.Message) error {
		calls++
		return errors.New("vector store down")
	}
	msg := &common.Message{Topic: TopicKnowledgeIngest, Value: []byte("x"), Headers: map[string]string{"trace_id": "t1"}}

	err := c.processMessage(context.Background(), msg, handler)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, dl.msgs, 1)
	assert.Equal(t, TopicDeadLetter, dl.msgs[0].Topic)
	assert.Equal(t, TopicKnowledgeIngest, dl.msgs[0].Headers["original_topic"])
	assert.Equal(t, "vector store down", dl.msgs[0].Headers["error_message"])
	assert.Equal(t, "t1", dl.msgs[0].Headers["trace_id"])
	assert.NotContains(t, msg.Headers, "original_topic")
	assert.Equal(t, int64(2), c.GetMetrics().MessagesRetried.Load())
}

func TestConsumer_RetrySucceeds(t *testing.T) {
	c := newConsumer(&queueReader{}, nil, testConsumerConfig(), nil, nil)
	calls := 0
	err := c.processMessage(context.Background(), &common.Message{}, func(context.Context, *common.Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	c := newConsumer(&queueReader{}, nil, testConsumerConfig(), nil, nil)
	assert.NoError(t, c.Close())
}
