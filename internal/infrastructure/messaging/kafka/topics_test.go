package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/pkg/types/common"
)

type mockConn struct {
	created    []kafka.TopicConfig
	createErr  error
	partitions map[string][]kafka.Partition
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if len(topics) == 1 {
		return m.partitions[topics[0]], nil
	}
	return nil, nil
}

func (m *mockConn) Close() error { return nil }

func TestEventEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEventEnvelope(EventKnowledgeIngest, SourceService, KnowledgeIngestPayload{Domain: "Tax", Text: "GST applies"})
	require.NoError(t, err)
	env.TraceID = "trace-9"

	msg, err := env.ToMessage(TopicKnowledgeIngest)
	require.NoError(t, err)
	assert.Equal(t, "trace-9", msg.Headers["trace_id"])
	assert.Equal(t, EventKnowledgeIngest, msg.Headers["event_type"])

	back, err := MessageToEventEnvelope(&common.Message{Value: msg.Value})
	require.NoError(t, err)
	var payload KnowledgeIngestPayload
	require.NoError(t, back.DecodePayload(&payload))
	assert.Equal(t, "Tax", payload.Domain)
}

func TestEventEnvelope_Invalid(t *testing.T) {
	_, err := MessageToEventEnvelope(&common.Message{})
	assert.Error(t, err)
	_, err = MessageToEventEnvelope(&common.Message{Value: []byte("{")})
	assert.Error(t, err)
	assert.Error(t, (&EventEnvelope{}).DecodePayload(&KnowledgeIngestPayload{}))
}

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &mockConn{}
	m := newTopicManager(conn, nil)

	topics := DefaultTopics("ev", "in", "dl")
	require.Len(t, topics, 3)
	require.NoError(t, m.EnsureTopics(context.Background(), topics))
	require.Len(t, conn.created, 3)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)

	assert.Len(t, DefaultTopics("ev", "in", ""), 2)
}

func TestTopicManager_CreateTopic(t *testing.T) {
	conn := &mockConn{
		createErr:  errors.New("topic already exists"),
		partitions: map[string][]kafka.Partition{"ev": {{Topic: "ev"}}},
	}
	m := newTopicManager(conn, nil)

	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "ev", NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "other", NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x"}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{}))
}
