package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	l := NewImportLimiter(2, 50*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}

	if err := l.Acquire(ctx); !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("third Acquire() = %v, want ErrTooManyImports", err)
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() after Release() error = %v", err)
	}

	active, capacity := l.Status()
	if active != 2 || capacity != 2 {
		t.Errorf("Status() = %d/%d, want 2/2", active, capacity)
	}
}

func TestImportLimiter_ContextCancel(t *testing.T) {
	l := NewImportLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire(cancelled) = %v, want context.Canceled", err)
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	if l.WaitForDrain(60 * time.Millisecond) {
		t.Error("WaitForDrain() should time out while a slot is held")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Release()
	}()
	if !l.WaitForDrain(time.Second) {
		t.Error("WaitForDrain() should succeed after Release()")
	}
}
