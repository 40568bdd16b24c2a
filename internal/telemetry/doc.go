// Package telemetry delivers best-effort usage events for action invocations
// and installs the OpenTelemetry tracer and meter providers.
package telemetry
