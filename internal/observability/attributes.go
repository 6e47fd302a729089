// Package observability exposes control-plane metrics through OpenTelemetry
// with a Prometheus exporter.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod   = "method"
	attrRoute    = "route"
	attrStatus   = "status"
	attrTaskType = "task_type"
	attrProvider = "provider"
	attrReason   = "reason"
	attrOutcome  = "outcome"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func routeAttr(route string) attribute.KeyValue {
	// unmatched routes collapse into one series
	if route == "" {
		route = "unmatched"
	}
	return attribute.String(attrRoute, route)
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func taskTypeAttr(taskType string) attribute.KeyValue {
	return attribute.String(attrTaskType, taskType)
}

func providerAttr(provider string) attribute.KeyValue {
	return attribute.String(attrProvider, provider)
}

func reasonAttr(reason string) attribute.KeyValue {
	return attribute.String(attrReason, reason)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}
