// Package process supervises external transcoder processes.
//
// A Supervisor keeps at most one Process per id (the streaming session id):
//   - Spawn writes an optional stdin payload and closes the input
//   - stdout and stderr are logged line by line through a pluggable LogParser
//   - Kill removes the registry entry before sending SIGKILL to the process group
//   - an exit while still registered is reported as unexpected
//
// There are no restarts and no timeouts; a hung process is only reaped by Kill.
//
//	sup := process.NewSupervisor(process.Options{
//		Logger:       logging.GetLogger("process"),
//		OutputLogger: logging.GetLogger("ffmpeg"),
//		LogParser:    ffmpeg.ParseLogLevel,
//	})
//	sup.Spawn(sessionID, "ffmpeg", args, sdp)
//	defer sup.KillAll()
package process
