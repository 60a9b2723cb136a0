package services

import (
	"time"

	"wastelink-backend/internal/apperrors"
	"wastelink-backend/internal/geoloc"
	"wastelink-backend/internal/models"
)

// LocationStore persists the last known device position per collector
type LocationStore interface {
	UpsertCollectorLocation(loc *models.CollectorLocation) (int64, error)
	MarkCollectorDisconnected(collectorID string) error
	GetCollectorLocation(collectorID string) (*models.CollectorLocation, error)
}

// LocationService ingests device positions (HTTP or websocket) and fans them
// out to live watch subscriptions
type LocationService struct {
	store   LocationStore
	watcher *geoloc.Watcher
	now     func() time.Time
}

func NewLocationService(store LocationStore, watcher *geoloc.Watcher) *LocationService {
	return &LocationService{store: store, watcher: watcher, now: time.Now}
}

// Ingest validates and persists one position sample, then publishes it to
// subscribers. Returns the server-side updated_at stamp.
func (s *LocationService) Ingest(collectorID string, loc models.CollectorLocation) (int64, error) {
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return 0, apperrors.Validation("coordinates out of range: (%f, %f)", loc.Latitude, loc.Longitude)
	}
	if loc.Timestamp == 0 {
		loc.Timestamp = s.now().Unix()
	}
	loc.CollectorID = collectorID

	updatedAt, err := s.store.UpsertCollectorLocation(&loc)
	if err != nil {
		return 0, apperrors.Transient(err, "failed to store location")
	}

	if s.watcher != nil {
		s.watcher.Publish(geoloc.Update{
			CollectorID: collectorID,
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			Heading:     loc.Heading,
			Speed:       loc.Speed,
			Accuracy:    loc.Accuracy,
			Timestamp:   loc.Timestamp,
		})
	}

	return updatedAt, nil
}

// ReportFailure forwards a device-side location failure to the watch
// registry. Timeouts keep the watch alive; permission denial terminates it.
func (s *LocationService) ReportFailure(collectorID string, kind geoloc.FailureKind, detail string) {
	if s.watcher != nil {
		s.watcher.ReportFailure(collectorID, kind, detail)
	}
}

// Disconnect records that the collector's device dropped; the last position
// is preserved for the fleet dashboard
func (s *LocationService) Disconnect(collectorID string) error {
	return s.store.MarkCollectorDisconnected(collectorID)
}

// Last returns the collector's last known position, nil when never reported
func (s *LocationService) Last(collectorID string) (*models.CollectorLocation, error) {
	return s.store.GetCollectorLocation(collectorID)
}
