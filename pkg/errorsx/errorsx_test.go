package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonDispatchSend)
	if Reason(err) != ReasonDispatchSend {
		t.Fatalf("expected reason %s, got %s", ReasonDispatchSend, Reason(err))
	}
	if !HasReason(err, ReasonDispatchSend) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonMicPermission)
	second := Wrap(first, ReasonDispatchSend)
	if Reason(second) != ReasonMicPermission {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonOfNil(t *testing.T) {
	if Wrap(nil, ReasonStaleResult) != nil {
		t.Fatalf("expected nil wrap to stay nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil error")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
