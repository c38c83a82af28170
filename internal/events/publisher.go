package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"kitakita/internal/adapters/kafka"
	"kitakita/internal/agents"
)

// Compile-time check that we implement the interface
var _ agents.DecisionPublisher = (*Publisher)(nil)

// Publisher serializes agent events onto Kafka topics.
type Publisher struct {
	producer *kafka.Producer
}

// NewPublisher creates a publisher backed by the given producer.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// PublishDecision emits a decision record to the audit stream, keyed by user
// so one user's decisions stay ordered.
func (p *Publisher) PublishDecision(ctx context.Context, agentID string, userID uuid.UUID, d agents.Decision) error {
	event := DecisionEvent{
		EventID:    uuid.New(),
		DecisionID: d.ID,
		AgentID:    agentID,
		UserID:     userID,
		Chosen:     d.Chosen,
		Confidence: d.Confidence,
		Degraded:   d.Degraded,
		Timestamp:  d.Timestamp,
	}
	return p.producer.Publish(ctx, kafka.TopicAgentDecision, userID.String(), event)
}

// PublishRecovery emits a self-heal lifecycle event.
func (p *Publisher) PublishRecovery(ctx context.Context, agentID string, userID uuid.UUID, phase string) error {
	event := RecoveryEvent{
		EventID:   uuid.New(),
		AgentID:   agentID,
		UserID:    userID,
		Phase:     phase,
		Timestamp: time.Now(),
	}
	return p.producer.Publish(ctx, kafka.TopicAgentRecovery, userID.String(), event)
}

// PublishInsightsRefreshed emits a dashboard refresh event.
func (p *Publisher) PublishInsightsRefreshed(ctx context.Context, userID uuid.UUID, succeeded, failed int) error {
	event := InsightsRefreshedEvent{
		EventID:   uuid.New(),
		UserID:    userID,
		Succeeded: succeeded,
		Failed:    failed,
		Timestamp: time.Now(),
	}
	return p.producer.Publish(ctx, kafka.TopicInsightsRefreshed, userID.String(), event)
}

// NoopPublisher satisfies the publisher contracts when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishDecision(context.Context, string, uuid.UUID, agents.Decision) error {
	return nil
}

func (NoopPublisher) PublishRecovery(context.Context, string, uuid.UUID, string) error {
	return nil
}

func (NoopPublisher) PublishInsightsRefreshed(context.Context, uuid.UUID, int, int) error {
	return nil
}
