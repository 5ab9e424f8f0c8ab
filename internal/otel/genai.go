package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// GenAI semantic convention keys (OpenTelemetry GenAI SIG).
const (
	GenAISystem               = attribute.Key("gen_ai.system")
	GenAIRequestModel         = attribute.Key("gen_ai.request.model")
	GenAIRequestTemperature   = attribute.Key("gen_ai.request.temperature")
	GenAIRequestMaxTokens     = attribute.Key("gen_ai.request.max_tokens")
	GenAIUsageInputTokens     = attribute.Key("gen_ai.usage.input_tokens")
	GenAIUsageOutputTokens    = attribute.Key("gen_ai.usage.output_tokens")
	GenAIResponseFinishReason = attribute.Key("gen_ai.response.finish_reason")
	GenAIResponseID           = attribute.Key("gen_ai.response.id")
	GenAIToolName             = attribute.Key("gen_ai.tool.name")
	GenAIToolCallID           = attribute.Key("gen_ai.tool.call.id")
)

// Assistant-specific keys.
const (
	ActorType        = attribute.Key("assistant.actor.type")
	ActorAccessLevel = attribute.Key("assistant.actor.access_level")
	ToolSensitivity  = attribute.Key("assistant.tool.sensitivity")
	ToolSuccess      = attribute.Key("assistant.tool.success")
	Step             = attribute.Key("assistant.step")
)

// LLMRequestAttributes builds the standard attribute set for a model request.
func LLMRequestAttributes(system, model string, temperature float64, maxTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAISystem.String(system),
		GenAIRequestModel.String(model),
		GenAIRequestTemperature.Float64(temperature),
		GenAIRequestMaxTokens.Int(maxTokens),
	}
}

// LLMUsageAttributes builds the token usage attribute set.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAIUsageInputTokens.Int(inputTokens),
		GenAIUsageOutputTokens.Int(outputTokens),
	}
}
