package camera

import (
	"context"
	"slices"

	"github.com/smazurov/bellbridge/internal/events"
	"github.com/smazurov/bellbridge/internal/ffmpeg"
)

// startStream merges the client's parameters and starts a call for the
// session. A session that already has a call is restarted; when every
// slot is taken the oldest call is ended first.
func (s *Streamer) startStream(ctx context.Context, req StreamRequest) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	sess, ok := s.Session(req.SessionID)
	if !ok {
		return NewStreamError(ErrCodeSessionNotFound, "start for unknown session "+req.SessionID, nil)
	}

	if s.isActive(sess.ID) {
		s.endCall(ctx, sess.ID, "replaced")
	}
	s.mu.RLock()
	limit := s.maxCalls
	s.mu.RUnlock()
	for calls := s.ActiveCalls(); len(calls) >= limit; calls = s.ActiveCalls() {
		s.logger.Info("Call slots full, ending oldest call", "session_id", calls[0], "max_calls", limit)
		s.endCall(ctx, calls[0], "evicted")
	}

	// Re-read: ending a call replaces the stored session.
	if cur, ok := s.Session(sess.ID); ok {
		sess = cur
	}
	sess = sess.withParams(req.Video, req.Audio)
	s.putSession(sess)

	if err := s.startCall(ctx, sess); err != nil {
		s.publish(events.StreamFailedEvent{
			SessionID: sess.ID,
			Code:      ErrorCode(err),
			Error:     err.Error(),
			Timestamp: events.Now(),
		})
		return err
	}
	return nil
}

// startCall feeds the session from the pinned recording when replay is on,
// falling back to a live call when the recording cannot be resolved.
func (s *Streamer) startCall(ctx context.Context, sess *Session) error {
	s.mu.RLock()
	var pinned *Activity
	if s.replayEnabled && s.activity != nil {
		a := *s.activity
		pinned = &a
	}
	s.mu.RUnlock()

	if pinned != nil {
		url, err := s.device.VideoURL(ctx, *pinned)
		if err == nil {
			return s.startPlayback(ctx, sess, *pinned, url)
		}
		s.logger.Warn("Failed to resolve recorded video, falling back to live",
			"session_id", sess.ID,
			"activity_id", pinned.ID,
			"error", err)
	}
	return s.startLive(ctx, sess)
}

func (s *Streamer) startPlayback(ctx context.Context, sess *Session, activity Activity, url string) error {
	caption := Caption(activity, s.now())
	s.logger.Info("Starting playback", "session_id", sess.ID, "activity_id", activity.ID, "caption", caption)

	cmd := ffmpeg.BuildPlayback(url, caption, s.output(sess, s.recording))
	return s.spawn(ctx, sess, cmd, ModePlayback)
}

func (s *Streamer) startLive(ctx context.Context, sess *Session) error {
	s.logger.Info("Starting live call", "session_id", sess.ID)

	call, err := s.device.StartCall(ctx, sess.ID)
	if err != nil {
		return NewStreamError(ErrCodeCallFailed, "start device call", err)
	}

	err = Punch(s.bind, call.Video.Server, []int{call.Video.Port, call.Audio.Port})
	if err != nil {
		s.stopDeviceCall(ctx, sess.ID)
		return NewStreamError(ErrCodePunchFailed, "open return path", err)
	}

	s.mu.RLock()
	source := liveSource(s.maxHeight)
	s.mu.RUnlock()

	cmd, err := ffmpeg.BuildLive(s.name, call, s.output(sess, source))
	if err == nil {
		err = s.spawn(ctx, sess, cmd, ModeLive)
	}
	if err != nil {
		s.stopDeviceCall(ctx, sess.ID)
		return err
	}
	return nil
}

func (s *Streamer) output(sess *Session, source ffmpeg.Resolution) ffmpeg.Output {
	return ffmpeg.Output{
		Ladder: s.Capabilities().Resolutions,
		Source: source,
		Video:  sess.Video,
		Audio:  sess.Audio,
	}
}

func (s *Streamer) spawn(ctx context.Context, sess *Session, cmd ffmpeg.Command, mode Mode) error {
	if cmd.AudioErr != nil {
		s.logger.Error("Audio disabled for session", "session_id", sess.ID, "error", cmd.AudioErr)
	}

	name, args, err := s.resolver.Command(ctx, cmd.Args)
	if err != nil {
		return NewStreamError(ErrCodeNoTranscoder, "locate transcoder", err)
	}
	proc, err := s.spawner.Spawn(sess.ID, name, args, cmd.Stdin)
	if err != nil {
		return NewStreamError(ErrCodeSpawnFailed, "spawn transcoder", err)
	}

	s.mu.Lock()
	s.procs[sess.ID] = proc
	s.sessions[sess.ID] = sess.with(StateStarted, mode, mode == ModeLive)
	s.active = append(s.active, sess.ID)
	s.mu.Unlock()

	s.logger.Info("Stream started",
		"session_id", sess.ID,
		"mode", mode,
		"resolution", cmd.Video.String(),
		"copy", cmd.Copy)
	s.publish(events.StreamStartedEvent{
		SessionID:  sess.ID,
		Mode:       string(mode),
		Resolution: cmd.Video.String(),
		Copy:       cmd.Copy,
		Timestamp:  events.Now(),
	})
	return nil
}

// stopStream ends the session's call, if any, and forgets the session.
// Unknown and already stopped sessions are ignored.
func (s *Streamer) stopStream(ctx context.Context, id string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isActive(id) {
		s.endCall(ctx, id, "stop")
	}
	s.deleteSession(id)
}

func (s *Streamer) reconfigure(req StreamRequest) {
	sess, ok := s.Session(req.SessionID)
	if !ok {
		s.logger.Warn("Reconfigure for unknown session", "session_id", req.SessionID)
		return
	}
	s.putSession(sess.withParams(req.Video, req.Audio))
	s.logger.Info("Session parameters updated; running transcoder keeps its settings", "session_id", req.SessionID)
}

// endCall releases the session's call slot and kills its transcoder. The
// device call is stopped only for live-backed sessions. Callers hold opMu.
func (s *Streamer) endCall(ctx context.Context, id, reason string) {
	s.mu.Lock()
	s.active = slices.DeleteFunc(s.active, func(a string) bool { return a == id })
	delete(s.procs, id)
	sess := s.sessions[id]
	if sess != nil {
		s.sessions[id] = sess.with(StateStopped, sess.Mode, false)
	}
	s.mu.Unlock()

	s.spawner.Kill(id)

	var mode Mode
	if sess != nil {
		mode = sess.Mode
		if sess.Live {
			s.stopDeviceCall(ctx, id)
		}
	}

	s.logger.Info("Call ended", "session_id", id, "mode", mode, "reason", reason)
	s.publish(events.StreamStoppedEvent{
		SessionID: id,
		Mode:      string(mode),
		Reason:    reason,
		Timestamp: events.Now(),
	})
}

// stopDeviceCall ends the doorbell call. Errors are logged only.
func (s *Streamer) stopDeviceCall(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stopTimeout)
	defer cancel()
	if err := s.device.StopCall(ctx, id); err != nil {
		s.logger.Warn("Failed to stop device call", "session_id", id, "error", err)
	}
}
