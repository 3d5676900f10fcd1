// Package camera is the doorbell's streaming core.
//
// A Streamer negotiates SRTP sessions with streaming clients, decides per
// start whether to replay a recorded clip or open a live call, and keeps at
// most one transcoder per session through a Spawner:
//
//	s := camera.New(camera.Options{
//		Name:          "Front Door",
//		Device:        device,
//		Spawner:       supervisor,
//		Resolver:      ffmpeg.DefaultLocator(),
//		ReplayEnabled: true,
//	})
//	resp, err := s.PrepareSession(ctx, setup)
//	s.HandleStreamRequest(ctx, camera.StreamRequest{SessionID: resp.SessionID, Type: camera.RequestStart})
//
// Live calls punch a UDP return path from the doorbell's ports before the
// transcoder starts; recorded clips are captioned with the time since the
// event.
package camera
