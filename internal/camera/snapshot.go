package camera

import (
	"context"
	"time"
)

// snapshotTTL absorbs the burst of snapshot requests a client sends when
// it opens the camera view.
const snapshotTTL = 10 * time.Second

type snapshotCache struct {
	image   []byte
	format  string
	fetched time.Time
}

// HandleSnapshotRequest returns the doorbell's latest still image and its
// format. width and height are advisory; the image is served as stored.
func (s *Streamer) HandleSnapshotRequest(ctx context.Context, width, height int) ([]byte, string, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	now := s.now()
	if s.snapshot.image != nil && now.Sub(s.snapshot.fetched) < snapshotTTL {
		return s.snapshot.image, s.snapshot.format, nil
	}

	s.logger.Debug("Fetching snapshot", "camera", s.name, "width", width, "height", height)
	image, format, err := s.device.Avatar(ctx)
	if err != nil {
		return nil, "", NewStreamError(ErrCodeSnapshotFailed, "fetch doorbell image", err)
	}
	s.snapshot = snapshotCache{image: image, format: format, fetched: now}
	return image, format, nil
}
