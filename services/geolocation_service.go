package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"carebow/models"
	"carebow/utils"

	"github.com/sirupsen/logrus"
)

// Typed failures of the geolocation resolver. These are reported as values,
// never panics, and propagate unchanged to the coordinator.
var (
	ErrLocationPermission  = errors.New("Location permission not granted")
	ErrLocationTimeout     = errors.New("Location request timed out")
	ErrNoLastKnownLocation = errors.New("no last known location available")
	ErrNoPositionSource    = errors.New("no position source available")
)

// PositionSource asks the device for a fresh position fix at balanced
// accuracy. Implementations must honor context cancellation.
type PositionSource interface {
	CurrentPosition(ctx context.Context, userID string) (*models.LocationFix, error)
}

// GeolocationService performs permission-checked, timeout-bounded retrieval of
// a user's current position, with fallback to the cached last-known fix. It
// holds no durable state: the permission cache is refreshed by the coordinator
// and the fix cache lives only for the process lifetime.
type GeolocationService struct {
	source PositionSource

	mu          sync.RWMutex
	lastKnown   map[string]models.LocationFix
	permissions map[string]models.PermissionStatus
}

func NewGeolocationService(source PositionSource) *GeolocationService {
	return &GeolocationService{
		source:      source,
		lastKnown:   make(map[string]models.LocationFix),
		permissions: make(map[string]models.PermissionStatus),
	}
}

// UpdatePermission refreshes the cached location permission for a user.
func (gs *GeolocationService) UpdatePermission(userID string, status models.PermissionStatus) {
	gs.mu.Lock()
	gs.permissions[userID] = status
	gs.mu.Unlock()
}

// LocationPermission reads the cached permission without prompting the device.
func (gs *GeolocationService) LocationPermission(userID string) models.PermissionStatus {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	if status, ok := gs.permissions[userID]; ok {
		return status
	}
	return models.PermissionUndetermined
}

// ReportPosition records a device-reported fix as the last-known position.
// Fixes with out-of-range coordinates are dropped.
func (gs *GeolocationService) ReportPosition(userID string, fix models.LocationFix) {
	if !utils.IsValidCoordinate(fix.Latitude, fix.Longitude) {
		logrus.Warnf("Dropping position report with invalid coordinates for user %s", userID)
		return
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	gs.mu.Lock()
	if prev, ok := gs.lastKnown[userID]; ok {
		moved := utils.CalculateDistance(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude)
		logrus.Debugf("Position update for user %s, moved %.0fm", userID, moved)
	}
	gs.lastKnown[userID] = fix
	gs.mu.Unlock()
}

// GetCurrentLocation races a live position request against the timeout. The
// permission gate runs first and fails fast without touching the device; when
// the timer wins, the position request is abandoned, not waited on.
func (gs *GeolocationService) GetCurrentLocation(ctx context.Context, userID string, timeout time.Duration) (*models.LocationFix, error) {
	if gs.LocationPermission(userID) != models.PermissionGranted {
		return nil, ErrLocationPermission
	}
	if gs.source == nil {
		return nil, ErrNoPositionSource
	}

	result := utils.RaceWithTimeout(ctx, timeout, func(ctx context.Context) (*models.LocationFix, error) {
		return gs.source.CurrentPosition(ctx, userID)
	})

	if result.TimedOut {
		logrus.Debugf("Location request timed out for user %s after %s", userID, timeout)
		return nil, ErrLocationTimeout
	}
	if result.Err != nil {
		return nil, result.Err
	}

	fix := result.Value
	if fix != nil {
		gs.ReportPosition(userID, *fix)
	}
	return fix, nil
}

// GetLastKnownLocation returns the most recent cached fix without a live
// fetch. It fails when permission is absent or nothing has been cached.
func (gs *GeolocationService) GetLastKnownLocation(userID string) (*models.LocationFix, error) {
	if gs.LocationPermission(userID) != models.PermissionGranted {
		return nil, ErrLocationPermission
	}

	gs.mu.RLock()
	fix, ok := gs.lastKnown[userID]
	gs.mu.RUnlock()

	if !ok {
		return nil, ErrNoLastKnownLocation
	}
	return &fix, nil
}

// GetLocationWithFallback tries a live fix, then the cached one. When both
// fail, the live fetch's failure is returned since it is the more informative
// of the two.
func (gs *GeolocationService) GetLocationWithFallback(ctx context.Context, userID string, timeout time.Duration) (*models.LocationFix, error) {
	fix, liveErr := gs.GetCurrentLocation(ctx, userID, timeout)
	if liveErr == nil {
		return fix, nil
	}

	cached, cachedErr := gs.GetLastKnownLocation(userID)
	if cachedErr != nil {
		return nil, liveErr
	}

	logrus.Debugf("Falling back to last known location for user %s: %v", userID, liveErr)
	return cached, nil
}
