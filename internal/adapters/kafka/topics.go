package kafka

// Topic definitions for Kafka event streaming
const (
	// Agent events
	TopicAgentDecision = "agents.decisions"
	TopicAgentRecovery = "agents.recoveries"

	// Advisor events
	TopicInsightsRefreshed = "insights.refreshed"
)
