package future

import (
	"errors"
	"testing"
)

func TestFuture_CompleteThenGet(t *testing.T) {
	f := New[int]()
	if f.IsDone() {
		t.Fatalf("expected not done before Complete")
	}
	f.Complete(42)
	if !f.IsDone() {
		t.Fatalf("expected done after Complete")
	}
	value, err := f.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 42 {
		t.Errorf("expected 42, got %d", value)
	}
}

func TestFuture_CompleteErrThenGet(t *testing.T) {
	f := New[int]()
	want := errors.New("boom")
	f.CompleteErr(want)
	if !f.IsDone() {
		t.Fatalf("expected done after CompleteErr")
	}
	_, err := f.Get()
	if err != want {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestFuture_DoubleCompletePanics(t *testing.T) {
	f := New[int]()
	f.Complete(1)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on double completion")
		}
	}()
	f.Complete(2)
}

func TestFuture_CompleteThenCompleteErrPanics(t *testing.T) {
	f := New[int]()
	f.Complete(1)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on completing an already-resolved future")
		}
	}()
	f.CompleteErr(errors.New("too late"))
}

func TestFuture_DoneChannelClosesOnCompletion(t *testing.T) {
	f := New[string]()
	select {
	case <-f.Done():
		t.Fatalf("expected Done channel to be open before completion")
	default:
	}
	f.Complete("ready")
	select {
	case <-f.Done():
	default:
		t.Fatalf("expected Done channel to be closed after completion")
	}
}
