package config

const (
	// TopicEmbedRequest carries per-chunk embedding generation requests.
	TopicEmbedRequest = "embed.request"

	// TopicEmbedResult carries completion events for downstream indexers.
	TopicEmbedResult = "embed.result"

	// TopicEmbedDLQ carries dead-letter records for messages that exhausted retries.
	TopicEmbedDLQ = "embed.dlq"

	// TopicEmbedAlert carries operator-facing failure alerts.
	TopicEmbedAlert = "embed.alert"
)
