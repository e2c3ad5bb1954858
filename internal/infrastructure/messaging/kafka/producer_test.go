package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/common"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	written   []kafka.Message
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func newTestProducer(w WriterInterface) *Producer {
	return newProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 64}, nil, nil)
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}))

	err := ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b:9092"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN"},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestSecurityConfig_Mechanism(t *testing.T) {
	mech, err := SecurityConfig{}.mechanism()
	assert.NoError(t, err)
	assert.Nil(t, mech)

	mech, err = SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", mech.Name())

	_, err = SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	assert.Error(t, err)

	assert.Nil(t, SecurityConfig{}.tlsConfig())
	assert.True(t, SecurityConfig{TLSEnabled: true}.tlsConfig().InsecureSkipVerify)
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &common.ProducerMessage{
		Topic:   "events",
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: map[string]string{"h": "1"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "events", w.written[0].Topic)
	assert.Equal(t, []kafka.Header{{Key: "h", Value: []byte("1")}}, w.written[0].Headers)
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, int64(1), p.GetMetrics().MessagesSent.Load())
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, &common.ProducerMessage{Value: []byte("v")}))
	assert.Error(t, p.Publish(ctx, &common.ProducerMessage{Topic: "t"}))
	err := p.Publish(ctx, &common.ProducerMessage{Topic: "t", Value: make([]byte, 65)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestPublish_WriteFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error { return errors.New("broker down") }}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &common.ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessageQueueError))
	assert.Equal(t, int64(1), p.GetMetrics().MessagesFailed.Load())
}

func TestPublishEvent(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducerWithWriter(w, ProducerConfig{Brokers: []string{"b"}}, nil, nil)
	ctx := logging.ContextWithRequestID(context.Background(), "req-1")

	payload := PipelineCompletedPayload{CaseID: "CASE_1", CaseType: "case", Status: "success"}
	require.NoError(t, p.PublishEvent(ctx, TopicPipelineCompleted, EventPipelineCompleted, []byte("CASE_1"), payload))
	require.Len(t, w.written, 1)
	assert.Equal(t, []byte("CASE_1"), w.written[0].Key)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(w.written[0].Value, &env))
	assert.Equal(t, EventPipelineCompleted, env.EventType)
	assert.Equal(t, SourceService, env.Source)
	assert.Equal(t, "req-1", env.TraceID)

	var got PipelineCompletedPayload
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, payload.CaseID, got.CaseID)
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), &common.ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.Equal(t, ErrProducerClosed, err)
}
