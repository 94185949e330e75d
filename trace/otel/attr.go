package otel

import "go.opentelemetry.io/otel/attribute"

func llmModelAttr(model string) attribute.KeyValue {
	return attribute.String("llm.model", model)
}

func llmInputTokensAttr(tokens int) attribute.KeyValue {
	return attribute.Int("llm.input_tokens", tokens)
}

func llmOutputTokensAttr(tokens int) attribute.KeyValue {
	return attribute.Int("llm.output_tokens", tokens)
}

func llmActionCountAttr(n int) attribute.KeyValue {
	return attribute.Int("llm.actions", n)
}

func actionTypeAttr(t string) attribute.KeyValue {
	return attribute.String("action.type", t)
}

func actionIDAttr(id string) attribute.KeyValue {
	return attribute.String("action.id", id)
}

func actionPayloadAttr(payload string) attribute.KeyValue {
	return attribute.String("action.payload", payload)
}

func actionAppliedAttr(applied bool) attribute.KeyValue {
	return attribute.Bool("action.applied", applied)
}

func actionReasonAttr(reason string) attribute.KeyValue {
	return attribute.String("action.reason", reason)
}

func eventDataAttr(data string) attribute.KeyValue {
	return attribute.String("event.data", data)
}
