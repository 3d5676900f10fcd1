package ffmpeg

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SRTPSuite is the only crypto suite HomeKit and the doorbell agree on.
const SRTPSuite = "AES_CM_128_HMAC_SHA1_80"

// Audio codec names as negotiated with the client.
const (
	AudioCodecOpus   = "OPUS"
	AudioCodecAACELD = "AAC-eld"
)

// ErrUnsupportedAudioCodec is reported when the negotiated audio codec has
// no encoder mapping. The command is still built, without audio.
var ErrUnsupportedAudioCodec = errors.New("unsupported audio codec")

var (
	h264Profiles = []string{"baseline", "main", "high"}
	h264Levels   = []string{"3.1", "3.2", "4.0"}
)

// VideoTarget describes the client's video endpoint and the negotiated
// H.264 parameters.
type VideoTarget struct {
	Server      string `json:"server"`
	Port        int    `json:"port"`
	SSRC        uint32 `json:"ssrc"`
	Key         []byte `json:"-"` // master key followed by master salt
	Profile     int    `json:"profile"`
	Level       int    `json:"level"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FPS         int    `json:"fps"`
	PayloadType int    `json:"payload_type"`
	MaxBitrate  int    `json:"max_bitrate"` // kbps
	MTU         int    `json:"mtu"`
}

// Requested returns the size and rate the client asked for.
func (v VideoTarget) Requested() Resolution {
	return Resolution{Width: v.Width, Height: v.Height, FPS: v.FPS}
}

// AudioTarget describes the client's audio endpoint and codec parameters.
type AudioTarget struct {
	Server      string `json:"server"`
	Port        int    `json:"port"`
	SSRC        uint32 `json:"ssrc"`
	Key         []byte `json:"-"`
	Codec       string `json:"codec"`
	Channels    int    `json:"channels"`
	BitrateMode int    `json:"bitrate_mode"` // 0 variable, 1 constant
	SampleRate  int    `json:"sample_rate"`  // kHz
	PacketTime  int    `json:"packet_time"`  // ms
	PayloadType int    `json:"payload_type"`
	MaxBitrate  int    `json:"max_bitrate"` // kbps
}

// Output is everything needed to produce the encoded side of a command.
type Output struct {
	Ladder []Resolution
	Source Resolution
	Video  VideoTarget
	Audio  AudioTarget
}

// Command is a built transcode invocation, without executable or probe prefix.
type Command struct {
	Args  []string
	Stdin []byte

	// Video is the chosen output size; Copy is true when no re-encode happens.
	Video Resolution
	Copy  bool

	// AudioErr is set when the audio section was left out.
	AudioErr error
}

// globalArgs precede every input. level+ prefixes let ParseLogLevel
// route ffmpeg's own diagnostics; progress reports go to stdout.
func globalArgs() []string {
	return []string{"-threads", "0", "-loglevel", "level+warning", "-nostats", "-progress", "pipe:1"}
}

// BuildPlayback builds a command that replays a recorded clip from url with
// caption burned in at the top.
func BuildPlayback(url, caption string, out Output) Command {
	args := globalArgs()
	args = append(args, "-re", "-i", url)

	var filter string
	if caption != "" {
		filter = "drawtext=" + overlayStyle + ":text=" + EscapeDrawtext(caption)
	}

	cmd := Command{}
	args = appendVideoOutput(args, out, filter, &cmd)
	args, cmd.AudioErr = appendAudioOutput(args, out.Audio)
	cmd.Args = args
	return cmd
}

// BuildLive builds a command that relays the doorbell's live call. The SDP
// describing the upstream streams is supplied on stdin.
func BuildLive(name string, src LiveSource, out Output) (Command, error) {
	sdpIn, err := BuildSDP(name, src)
	if err != nil {
		return Command{}, err
	}

	args := globalArgs()
	// The SDP declares L16 (big endian); the doorbell actually sends s16le.
	args = append(args, "-acodec", "pcm_s16le", "-i", "-")

	cmd := Command{Stdin: sdpIn}
	args = appendVideoOutput(args, out, "", &cmd)
	args, cmd.AudioErr = appendAudioOutput(args, out.Audio)
	cmd.Args = args
	return cmd, nil
}

const overlayStyle = "fontsize=18:x=(w-tw)/2:y=2:box=1:boxborderw=2:fontcolor=red:boxcolor=black@0.7"

var (
	drawtextFirstPass  = regexp.MustCompile(`[\\':]`)
	drawtextSecondPass = regexp.MustCompile(`[\\'\[\],;]`)
)

// EscapeDrawtext escapes text for a drawtext value nested inside a filtergraph:
// once for the option parser, once for the graph parser.
func EscapeDrawtext(text string) string {
	text = drawtextFirstPass.ReplaceAllString(text, `\$0`)
	return drawtextSecondPass.ReplaceAllString(text, `\$0`)
}

func appendVideoOutput(args []string, out Output, extraFilter string, cmd *Command) []string {
	v := out.Video
	res := SelectResolution(out.Ladder, v.Requested(), out.Source)
	cmd.Video = res

	if res.sameSize(out.Source) && extraFilter == "" {
		cmd.Copy = true
		args = append(args, "-vcodec", "copy")
	} else {
		filter := fmt.Sprintf("scale=%d:%d", res.Width, res.Height)
		if extraFilter != "" {
			filter += "," + extraFilter
		}
		args = append(args,
			"-vf", filter,
			"-vcodec", "libx264",
			"-pix_fmt", "yuv420p",
			"-r", strconv.Itoa(res.FPS),
			"-tune", "zerolatency",
			"-profile:v", pick(h264Profiles, v.Profile),
			"-level:v", pick(h264Levels, v.Level),
			"-b:v", kbps(v.MaxBitrate),
			"-bufsize", kbps(v.MaxBitrate),
		)
	}

	return append(args,
		"-an",
		"-f", "rtp",
		"-payload_type", strconv.Itoa(v.PayloadType),
		"-srtp_out_suite", SRTPSuite,
		"-srtp_out_params", base64.StdEncoding.EncodeToString(v.Key),
		"-ssrc", strconv.Itoa(int(int32(v.SSRC))),
		SRTPURL(v.Server, v.Port, v.MTU),
	)
}

func appendAudioOutput(args []string, a AudioTarget) ([]string, error) {
	switch a.Codec {
	case AudioCodecOpus:
		vbr := "on"
		if a.BitrateMode != 0 {
			vbr = "off"
		}
		args = append(args,
			"-acodec", "libopus",
			"-vbr", vbr,
			"-frame_duration", strconv.Itoa(a.PacketTime),
			"-application", "lowdelay",
		)
	case AudioCodecAACELD:
		args = append(args, "-acodec", "libfdk_aac", "-profile:a", "aac_eld")
	default:
		return args, fmt.Errorf("%w %q", ErrUnsupportedAudioCodec, a.Codec)
	}

	return append(args,
		"-ac", strconv.Itoa(a.Channels),
		"-ar", strconv.Itoa(a.SampleRate)+"K",
		"-b:a", kbps(a.MaxBitrate),
		"-vn",
		"-f", "rtp",
		"-flags", "+global_header",
		"-payload_type", strconv.Itoa(a.PayloadType),
		"-srtp_out_suite", SRTPSuite,
		"-srtp_out_params", base64.StdEncoding.EncodeToString(a.Key),
		"-ssrc", strconv.Itoa(int(int32(a.SSRC))),
		SRTPURL(a.Server, a.Port, 0),
	), nil
}

// SRTPURL builds an srtp:// output URL with RTCP multiplexed on the same
// port. pkt_size is added when mtu is positive.
func SRTPURL(host string, port, mtu int) string {
	var b strings.Builder
	b.WriteString("srtp://")
	if strings.Contains(host, ":") {
		b.WriteString("[" + host + "]")
	} else {
		b.WriteString(host)
	}
	p := strconv.Itoa(port)
	b.WriteString(":" + p + "?rtcpport=" + p + "&localrtcpport=" + p)
	if mtu > 0 {
		b.WriteString("&pkt_size=" + strconv.Itoa(mtu))
	}
	return b.String()
}

func kbps(v int) string {
	return strconv.Itoa(v) + "K"
}

func pick(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return values[len(values)-1]
	}
	return values[i]
}
