package services

import (
	"context"
	"sync"

	"carebow/models"
)

// PositionRequester pings a user's connected devices for a fresh fix. The
// websocket hub implements this.
type PositionRequester interface {
	RequestPosition(userID string) error
}

// DeviceLocationBridge implements PositionSource over the device channel: it
// asks the user's devices for a position and resolves the first report that
// arrives before the caller's context expires.
type DeviceLocationBridge struct {
	requester PositionRequester

	mu      sync.Mutex
	pending map[string][]chan models.LocationFix
}

func NewDeviceLocationBridge(requester PositionRequester) *DeviceLocationBridge {
	return &DeviceLocationBridge{
		requester: requester,
		pending:   make(map[string][]chan models.LocationFix),
	}
}

func (db *DeviceLocationBridge) CurrentPosition(ctx context.Context, userID string) (*models.LocationFix, error) {
	waiter := make(chan models.LocationFix, 1)

	db.mu.Lock()
	db.pending[userID] = append(db.pending[userID], waiter)
	db.mu.Unlock()

	defer db.removeWaiter(userID, waiter)

	if db.requester != nil {
		if err := db.requester.RequestPosition(userID); err != nil {
			return nil, err
		}
	}

	select {
	case fix := <-waiter:
		return &fix, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver resolves every pending position request for the user with the
// reported fix. Safe to call when nothing is waiting.
func (db *DeviceLocationBridge) Deliver(userID string, fix models.LocationFix) {
	db.mu.Lock()
	waiters := db.pending[userID]
	delete(db.pending, userID)
	db.mu.Unlock()

	for _, waiter := range waiters {
		select {
		case waiter <- fix:
		default:
		}
	}
}

func (db *DeviceLocationBridge) removeWaiter(userID string, waiter chan models.LocationFix) {
	db.mu.Lock()
	defer db.mu.Unlock()

	waiters := db.pending[userID]
	for i, w := range waiters {
		if w == waiter {
			db.pending[userID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(db.pending[userID]) == 0 {
		delete(db.pending, userID)
	}
}
