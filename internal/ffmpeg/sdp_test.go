package ffmpeg

import (
	"strings"
	"testing"
)

func testSource() LiveSource {
	return LiveSource{
		Video: Upstream{
			Server:      "52.10.20.30",
			Port:        40000,
			PayloadType: 96,
			Encoding:    "H264",
			SampleRate:  90000,
			Key:         "dmlkZW9rZXl2aWRlb2tleXZpZGVva2V5dmlk",
			SSRC:        1111,
		},
		Audio: Upstream{
			Server:      "2001:db8::5",
			Port:        40002,
			PayloadType: 97,
			Encoding:    "PCMU",
			SampleRate:  8000,
			Key:         "YXVkaW9rZXlhdWRpb2tleWF1ZGlva2V5YXVk",
			Channels:    1,
			SSRC:        2222,
		},
	}
}

func TestBuildSDP(t *testing.T) {
	out, err := BuildSDP("Front Door #1", testSource())
	if err != nil {
		t.Fatal(err)
	}
	text := strings.ReplaceAll(string(out), "\r\n", "\n")

	ordered := []string{
		"v=0",
		"o=- 0 0 IN IP4 127.0.0.1",
		"s=Front Door #1 in",
		"t=0 0",
		"m=video 40000 RTP/SAVP 96",
		"c=IN IP4 52.10.20.30",
		"a=rtpmap:96 H264/90000",
		"a=crypto:1 AES_CM_128_HMAC_SHA1_80 inline:dmlkZW9rZXl2aWRlb2tleXZpZGVva2V5dmlk",
		"a=ssrc:1111",
		"m=audio 40002 RTP/SAVP 97",
		"c=IN IP6 2001:db8::5",
		"a=rtpmap:97 L16/8000/1",
		"a=crypto:1 AES_CM_128_HMAC_SHA1_80 inline:YXVkaW9rZXlhdWRpb2tleWF1ZGlva2V5YXVk",
		"a=ssrc:2222",
	}

	pos := 0
	for _, line := range ordered {
		i := strings.Index(text[pos:], line+"\n")
		if i < 0 {
			t.Fatalf("line %q missing or out of order in:\n%s", line, text)
		}
		pos += i + len(line) + 1
	}
}

func TestAddressType(t *testing.T) {
	tests := map[string]string{
		"10.0.0.1":         "IP4",
		"::ffff:10.0.0.1":  "IP4",
		"fe80::1":          "IP6",
		"doorbell.example": "IP6",
	}
	for host, want := range tests {
		if got := AddressType(host); got != want {
			t.Errorf("AddressType(%q) = %q, want %q", host, got, want)
		}
	}
}
