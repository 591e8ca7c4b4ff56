package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"carebow/models"
)

type fakeRequester struct {
	requested []string
	err       error
}

func (f *fakeRequester) RequestPosition(userID string) error {
	f.requested = append(f.requested, userID)
	return f.err
}

func TestDeviceBridgeDeliverResolvesRequest(t *testing.T) {
	requester := &fakeRequester{}
	bridge := NewDeviceLocationBridge(requester)

	done := make(chan struct{})
	var fix *models.LocationFix
	var err error

	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		fix, err = bridge.CurrentPosition(ctx, "u1")
	}()

	// Wait until the waiter is registered, then report the fix.
	deadline := time.Now().Add(time.Second)
	for len(requester.requested) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	bridge.Deliver("u1", models.LocationFix{Latitude: 48.85, Longitude: 2.35})

	<-done
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fix == nil || fix.Latitude != 48.85 {
		t.Errorf("unexpected fix: %+v", fix)
	}
	if len(requester.requested) != 1 || requester.requested[0] != "u1" {
		t.Errorf("position request not relayed: %v", requester.requested)
	}
}

func TestDeviceBridgeContextCancellation(t *testing.T) {
	bridge := NewDeviceLocationBridge(&fakeRequester{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := bridge.CurrentPosition(ctx, "u1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// Late delivery after the waiter gave up must not panic or block.
	bridge.Deliver("u1", models.LocationFix{Latitude: 1, Longitude: 1})
}

func TestDeviceBridgeRequestFailure(t *testing.T) {
	requester := &fakeRequester{err: ErrNoPositionSource}
	bridge := NewDeviceLocationBridge(requester)

	_, err := bridge.CurrentPosition(context.Background(), "u1")
	if !errors.Is(err, ErrNoPositionSource) {
		t.Fatalf("expected request error to propagate, got %v", err)
	}
}
