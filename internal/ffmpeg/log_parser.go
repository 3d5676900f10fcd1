package ffmpeg

import "strings"

// ParseLogLevel splits an ffmpeg stderr line produced with -loglevel level+...
// into a normalized level (error, warn, info, debug) and the message.
//
// Lines look like "[warning] message" or "[h264 @ 0x55d0] [error] message";
// the component prefix is kept in the message. -progress key=value lines
// are debug; other lines without a level tag are info.
func ParseLogLevel(line string) (level, msg string) {
	if IsProgressLine(line) {
		return "debug", line
	}
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if lvl, ok := normalizeLevel(line[1:end]); ok {
		return lvl, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 {
			if lvl, ok := normalizeLevel(rest[1:next]); ok {
				return lvl, component + rest[next+2:]
			}
		}
	}

	return "info", line
}

func normalizeLevel(s string) (string, bool) {
	switch s {
	case "quiet", "panic", "fatal", "error":
		return "error", true
	case "warning":
		return "warn", true
	case "info":
		return "info", true
	case "verbose", "debug", "trace":
		return "debug", true
	}
	return "", false
}

// IsProgressLine reports whether line is a -progress report entry such as
// "fps=29.97" or "progress=continue".
func IsProgressLine(line string) bool {
	eq := strings.IndexByte(line, '=')
	return eq > 0 && !strings.ContainsAny(line, " []")
}
