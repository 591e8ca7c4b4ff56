package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"carebow/models"
)

type fakePositionSource struct {
	fix   *models.LocationFix
	err   error
	delay time.Duration
	calls int
}

func (f *fakePositionSource) CurrentPosition(ctx context.Context, userID string) (*models.LocationFix, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.fix, f.err
}

func TestGetCurrentLocationPermissionGate(t *testing.T) {
	source := &fakePositionSource{fix: &models.LocationFix{Latitude: 1, Longitude: 2}}
	gs := NewGeolocationService(source)

	_, err := gs.GetCurrentLocation(context.Background(), "u1", time.Second)
	if !errors.Is(err, ErrLocationPermission) {
		t.Fatalf("expected permission error for undetermined permission, got %v", err)
	}

	gs.UpdatePermission("u1", models.PermissionDenied)
	_, err = gs.GetCurrentLocation(context.Background(), "u1", time.Second)
	if !errors.Is(err, ErrLocationPermission) {
		t.Fatalf("expected permission error for denied permission, got %v", err)
	}

	if source.calls != 0 {
		t.Errorf("source must not be queried without permission, got %d calls", source.calls)
	}
}

func TestGetCurrentLocationSuccessCachesFix(t *testing.T) {
	fix := &models.LocationFix{Latitude: 37.7749, Longitude: -122.4194, Accuracy: 5}
	gs := NewGeolocationService(&fakePositionSource{fix: fix})
	gs.UpdatePermission("u1", models.PermissionGranted)

	got, err := gs.GetCurrentLocation(context.Background(), "u1", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Latitude != fix.Latitude || got.Longitude != fix.Longitude {
		t.Errorf("unexpected fix: %+v", got)
	}

	cached, err := gs.GetLastKnownLocation("u1")
	if err != nil {
		t.Fatalf("expected cached fix after live success: %v", err)
	}
	if cached.Latitude != fix.Latitude {
		t.Errorf("cached fix mismatch: %+v", cached)
	}
}

func TestGetCurrentLocationTimeout(t *testing.T) {
	source := &fakePositionSource{
		fix:   &models.LocationFix{Latitude: 1, Longitude: 1},
		delay: 500 * time.Millisecond,
	}
	gs := NewGeolocationService(source)
	gs.UpdatePermission("u1", models.PermissionGranted)

	start := time.Now()
	_, err := gs.GetCurrentLocation(context.Background(), "u1", 20*time.Millisecond)
	if !errors.Is(err, ErrLocationTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Error("timeout did not bound the wait")
	}
}

func TestGetLastKnownLocationEmpty(t *testing.T) {
	gs := NewGeolocationService(&fakePositionSource{})
	gs.UpdatePermission("u1", models.PermissionGranted)

	_, err := gs.GetLastKnownLocation("u1")
	if !errors.Is(err, ErrNoLastKnownLocation) {
		t.Fatalf("expected no-last-known error, got %v", err)
	}
}

func TestGetLocationWithFallbackUsesCache(t *testing.T) {
	source := &fakePositionSource{err: errors.New("gps unavailable")}
	gs := NewGeolocationService(source)
	gs.UpdatePermission("u1", models.PermissionGranted)

	gs.ReportPosition("u1", models.LocationFix{Latitude: 10, Longitude: 20})

	fix, err := gs.GetLocationWithFallback(context.Background(), "u1", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("expected cached fallback, got error: %v", err)
	}
	if fix.Latitude != 10 || fix.Longitude != 20 {
		t.Errorf("unexpected fallback fix: %+v", fix)
	}
}

func TestGetLocationWithFallbackReturnsLiveError(t *testing.T) {
	liveErr := errors.New("gps unavailable")
	gs := NewGeolocationService(&fakePositionSource{err: liveErr})
	gs.UpdatePermission("u1", models.PermissionGranted)

	_, err := gs.GetLocationWithFallback(context.Background(), "u1", 50*time.Millisecond)
	if !errors.Is(err, liveErr) {
		t.Fatalf("expected the live error when both paths fail, got %v", err)
	}
}

func TestReportPositionRejectsInvalidCoordinates(t *testing.T) {
	gs := NewGeolocationService(&fakePositionSource{})
	gs.UpdatePermission("u1", models.PermissionGranted)

	gs.ReportPosition("u1", models.LocationFix{Latitude: 91, Longitude: 0})

	if _, err := gs.GetLastKnownLocation("u1"); !errors.Is(err, ErrNoLastKnownLocation) {
		t.Error("invalid fix must not be cached")
	}
}
