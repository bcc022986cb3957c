package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/mediafs/errors"
)

func TestEngine_LoadGuest_InvalidBinary(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close(ctx)

	if err := eng.LoadGuest(ctx, []byte("not wasm")); err == nil {
		t.Fatal("expected compile error for invalid binary")
	}
}

func TestEngine_AttachBeforeLoad(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, &Config{MemoryLimitPages: 256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close(ctx)

	_, err = eng.Attach(ctx)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAttach, Kind: errors.KindNotInitialized}) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}
}

func TestEngine_DetachNil(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close(ctx)

	if err := eng.Detach(ctx, nil); err != nil {
		t.Fatalf("Detach(nil): %v", err)
	}
}
