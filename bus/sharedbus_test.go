package bus

import (
	"context"
	"testing"
	"time"
)

type echoReceiver struct {
	last []byte
	next []byte
}

func (e *echoReceiver) OnReceive(data []byte) { e.last = append([]byte(nil), data...) }
func (e *echoReceiver) OnRequest() []byte     { return e.next }

func TestSharedBusTransact(t *testing.T) {
	b := NewSharedBus()
	r := &echoReceiver{next: []byte{0xAA, 0xBB, 0xCC}}
	b.Listen(0x0C, r)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rx, err := b.Transact(ctx, 0x0C, []byte{0x01, 0x02}, 3)
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if string(r.last) != "\x01\x02" {
		t.Fatalf("receiver saw %v, want [1 2]", r.last)
	}
	if string(rx) != "\xAA\xBB\xCC" {
		t.Fatalf("Transact returned %v, want [AA BB CC]", rx)
	}
}

func TestSharedBusNack(t *testing.T) {
	b := NewSharedBus()
	r := &echoReceiver{next: NackSentinel[:]}
	b.Listen(0x0C, r)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := b.Transact(ctx, 0x0C, []byte{0x01}, 2); err == nil {
		t.Fatalf("expected an error for a nack-sentinel answer")
	}
}

func TestSharedBusUnaddressedTimesOut(t *testing.T) {
	b := NewSharedBus()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.Transact(ctx, 0x7F, []byte{0x01}, 1); err != ErrBusTimeout {
		t.Fatalf("got err %v, want ErrBusTimeout", err)
	}
}

func TestDetectLineDebounce(t *testing.T) {
	dl := NewDetectLine(Low, 10*time.Millisecond)
	watch := dl.Watch()

	dl.Drive(High)
	dl.Drive(Low) // a glitch within the debounce window must not register
	dl.Drive(High)

	select {
	case lvl := <-watch:
		if lvl != High {
			t.Fatalf("settled level = %v, want High", lvl)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for a settled edge")
	}

	if dl.Settled() != High {
		t.Fatalf("Settled() = %v, want High", dl.Settled())
	}
}
