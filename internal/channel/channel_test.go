package channel

import (
	"testing"
	"time"
)

var _ Channel[int] = (*Buffered[int])(nil)
var _ Channel[int] = (*Unbuffered[int])(nil)

func TestBuffered_SendReceive(t *testing.T) {
	ch := NewBuffered[int](4)
	defer ch.Close()

	ch.Send(1)
	ch.Send(2)

	if got := ch.Len(); got != 2 {
		t.Errorf("expected len 2, got %d", got)
	}

	if v := <-ch.Receive(); v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
	if v := <-ch.Receive(); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
}

func TestBuffered_TrySend(t *testing.T) {
	ch := NewBuffered[string](1)
	defer ch.Close()

	if !ch.TrySend("first") {
		t.Error("expected send into empty buffer to succeed")
	}
	if ch.TrySend("second") {
		t.Error("expected send into full buffer to fail")
	}

	if v := <-ch.Receive(); v != "first" {
		t.Errorf("expected 'first', got %q", v)
	}
	if !ch.TrySend("third") {
		t.Error("expected send after drain to succeed")
	}
}

func TestBuffered_CloseDrainsRemaining(t *testing.T) {
	ch := NewBuffered[int](2)
	ch.Send(7)
	ch.Close()

	if v, ok := <-ch.Receive(); !ok || v != 7 {
		t.Errorf("expected buffered value after close, got %d ok=%v", v, ok)
	}
	if _, ok := <-ch.Receive(); ok {
		t.Error("expected closed channel after drain")
	}
}

func TestUnbuffered_TrySendWithoutReceiver(t *testing.T) {
	ch := NewUnbuffered[int]()
	defer ch.Close()

	if ch.TrySend(1) {
		t.Error("expected TrySend to fail with no receiver waiting")
	}
	if got := ch.Len(); got != 0 {
		t.Errorf("expected len 0, got %d", got)
	}
}

func TestUnbuffered_TrySendWithReceiver(t *testing.T) {
	ch := NewUnbuffered[int]()
	defer ch.Close()

	got := make(chan int, 1)
	ready := make(chan struct{})
	go func() {
		close(ready)
		got <- <-ch.Receive()
	}()
	<-ready

	// Receiver goroutine needs to reach the channel receive.
	deadline := time.After(time.Second)
	for !ch.TrySend(42) {
		select {
		case <-deadline:
			t.Fatal("TrySend never succeeded with a waiting receiver")
		case <-time.After(time.Millisecond):
		}
	}

	if v := <-got; v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestNew_ReturnsBuffered(t *testing.T) {
	ch := New[int](8)
	defer ch.Close()

	// Non-debug builds get a buffered channel: sends below the size
	// must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 8; i++ {
			ch.Send(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a channel that should be buffered")
	}
}
