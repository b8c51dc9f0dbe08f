package core

import (
	"errors"
	"testing"
)

func TestErrorForReplyCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{"NOT_CONNECTED", ExitNotConnected},
		{"BAD_VALUE", ExitNotFound},
		{"NOT_ALLOWED", ExitNotAllowed},
		{"INVALID", ExitUsage},
		{"UNKNOWN", ExitRuntime},
	}

	for _, test := range tests {
		err := ErrorForReplyCode(test.code, "message")
		if err.Code != test.expected {
			t.Fatalf("code %s expected %d got %d", test.code, test.expected, err.Code)
		}
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != ExitOK {
		t.Fatalf("expected ok, got %d", got)
	}
	if got := ExitCode(errors.New("boom")); got != ExitRuntime {
		t.Fatalf("expected runtime, got %d", got)
	}
	cause := errors.New("dial tcp")
	err := WrapError(ExitNotAllowed, "publish command", cause)
	if got := ExitCode(err); got != ExitNotAllowed {
		t.Fatalf("expected not allowed, got %d", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause")
	}
	if err.Error() != "publish command: dial tcp" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
