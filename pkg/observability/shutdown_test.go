package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *Logger {
	return NewLogger(ErrorLevel, io.Discard)
}

func TestNewShutdownManager(t *testing.T) {
	sm := NewShutdownManager(nil, 0)
	if sm.logger == nil {
		t.Error("Expected default logger")
	}
	if sm.shutdownTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", sm.shutdownTimeout)
	}
}

func TestRegisterShutdownFunc(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)
	sm.RegisterShutdownFunc("db", func(context.Context) error { return nil })
	sm.RegisterShutdownFunc("nil", nil)

	if len(sm.shutdownFuncs) != 1 {
		t.Errorf("Expected 1 shutdown func, got %d", len(sm.shutdownFuncs))
	}
}

func TestShutdown_RunsAllFunctions(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)

	var calls atomic.Int32
	for _, name := range []string{"db", "redis", "otel"} {
		sm.RegisterShutdownFunc(name, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestShutdown_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)
	errRedis := errors.New("redis close failed")

	sm.RegisterShutdownFunc("db", func(context.Context) error { return nil })
	sm.RegisterShutdownFunc("redis", func(context.Context) error { return errRedis })

	err := sm.Shutdown(context.Background())
	if !errors.Is(err, errRedis) {
		t.Errorf("Expected redis error, got %v", err)
	}
}

func TestShutdown_Timeout(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)
	block := make(chan struct{})
	defer close(block)

	sm.RegisterShutdownFunc("stuck", func(context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sm.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestShutdown_StopsServers(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	server := &http.Server{Handler: http.NotFoundHandler()}
	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	sm := NewShutdownManager(quietLogger(), time.Second, server)
	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Server did not stop")
	}
}

func TestWaitForShutdown_ContextCancel(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)
	var called atomic.Bool
	sm.RegisterShutdownFunc("db", func(context.Context) error {
		called.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sm.WaitForShutdown(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !called.Load() {
		t.Error("Expected shutdown function to run")
	}
}

func TestRecoverPanic(t *testing.T) {
	func() {
		defer RecoverPanic(quietLogger(), "test")
		panic("boom")
	}()

	if err := MustRecover(nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
	if err := MustRecover("boom"); err == nil || err.Error() != "panic: boom" {
		t.Errorf("Expected panic error, got %v", err)
	}

	err := func() (err error) {
		defer func() {
			err = LogRecovered(quietLogger(), "test", recover())
		}()
		panic("classifier exploded")
	}()
	if err == nil || err.Error() != "panic: classifier exploded" {
		t.Errorf("Expected recovered error, got %v", err)
	}
}
