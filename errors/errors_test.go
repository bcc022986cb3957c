package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := Trap("media_insert_file", fmt.Errorf("wasm trap: unreachable"))
	s := err.Error()

	if !strings.Contains(s, "[call]") {
		t.Errorf("missing phase in %q", s)
	}
	if !strings.Contains(s, "trap") {
		t.Errorf("missing kind in %q", s)
	}
	if !strings.Contains(s, "media_insert_file") {
		t.Errorf("missing op in %q", s)
	}
	if !strings.Contains(s, "unreachable") {
		t.Errorf("missing cause in %q", s)
	}
}

func TestError_Errno(t *testing.T) {
	err := Denied("media_get_redaction_ranges", -13)
	if !strings.Contains(err.Error(), "errno -13") {
		t.Errorf("missing errno in %q", err.Error())
	}
}

func TestError_Is(t *testing.T) {
	err := Rejected("media_scan_file")

	if !stderrors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindRejected}) {
		t.Error("expected Is to match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseCall, Kind: KindRejected}) {
		t.Error("expected Is to reject different phase")
	}
	if stderrors.Is(err, stderrors.New("rejected")) {
		t.Error("expected Is to reject non-Error target")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrap(PhaseLoad, KindInvalidInput, cause, "compile")

	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap chain to reach cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseDecode, KindBadPayload).
		Op("media_get_directory_entries").
		Detail("truncated at entry %d", 3).
		Build()

	if err.Phase != PhaseDecode || err.Kind != KindBadPayload {
		t.Fatalf("wrong phase/kind: %v / %v", err.Phase, err.Kind)
	}
	if err.Op != "media_get_directory_entries" {
		t.Fatalf("wrong op: %q", err.Op)
	}
	if err.Detail != "truncated at entry 3" {
		t.Fatalf("wrong detail: %q", err.Detail)
	}
}

func TestError_As(t *testing.T) {
	var target *Error
	wrapped := fmt.Errorf("outer: %w", NoExport("malloc"))

	if !stderrors.As(wrapped, &target) {
		t.Fatal("expected As to find *Error")
	}
	if target.Kind != KindNoExport {
		t.Fatalf("wrong kind: %v", target.Kind)
	}
}
