package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeThroughChain(t *testing.T) {
	cause := stdErrors.New("rpc down")
	err := fmt.Errorf("outer: %w", Wrap(CodeUpstreamFailure, cause, "fetch price"))

	if got := CodeOf(err); got != CodeUpstreamFailure {
		t.Fatalf("unexpected code %s", got)
	}
	if !HasCode(err, CodeUpstreamFailure) {
		t.Fatalf("expected HasCode to find upstream failure")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !RetryableError(err) {
		t.Fatalf("upstream failures default to retryable")
	}
}

func TestRegisterOverridesAttributes(t *testing.T) {
	const code Code = "TEST_CUSTOM"
	Register(code, Attributes{Message: "custom", Severity: SeverityCritical, Alert: true})

	err := New(code, "")
	if err.Message() != "custom" {
		t.Fatalf("expected default message, got %q", err.Message())
	}
	if err.Severity() != SeverityCritical || !err.ShouldAlert() {
		t.Fatalf("unexpected attributes: severity=%s alert=%v", err.Severity(), err.ShouldAlert())
	}

	overridden := New(code, "x", WithAlert(false), WithSeverity(SeverityInfo), WithMetadata("k", "v"))
	if overridden.ShouldAlert() || overridden.Severity() != SeverityInfo {
		t.Fatalf("options should override registry attributes")
	}
	if overridden.Metadata()["k"] != "v" {
		t.Fatalf("metadata missing: %+v", overridden.Metadata())
	}
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeNotFound, "a")
	b := New(CodeNotFound, "b")
	if !stdErrors.Is(a, b) {
		t.Fatalf("errors with same code should match")
	}
	if stdErrors.Is(a, New(CodeConflict, "")) {
		t.Fatalf("different codes must not match")
	}
	if CodeOf(stdErrors.New("plain")) != CodeUnknown {
		t.Fatalf("plain errors map to UNKNOWN")
	}
}
