package gcp

import (
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("PRDGENIE_TEST_VALUE", "set")
	if got := GetEnv("PRDGENIE_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("GetEnv = %q, want set", got)
	}
	if got := GetEnv("PRDGENIE_TEST_UNSET_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv = %q, want fallback", got)
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	wrapped := fmt.Errorf("copy: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})
	if !isPreconditionFailed(wrapped) {
		t.Fatalf("expected wrapped 412 to be detected")
	}
	if isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatalf("403 is not a precondition failure")
	}
	if isPreconditionFailed(fmt.Errorf("plain")) {
		t.Fatalf("plain error is not a precondition failure")
	}
}
