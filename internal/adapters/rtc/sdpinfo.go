package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

type MediaSummary struct {
	Kind      string
	Mid       string
	Direction string
	Codecs    []string
}

// Summary is the part of a session description worth a log line.
type Summary struct {
	Media []MediaSummary
}

var directions = []string{"sendrecv", "sendonly", "recvonly", "inactive"}

func Summarize(raw string) (Summary, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		return Summary{}, fmt.Errorf("parse sdp: %w", err)
	}
	var s Summary
	for _, md := range sd.MediaDescriptions {
		m := MediaSummary{Kind: md.MediaName.Media}
		m.Mid, _ = md.Attribute("mid")
		for _, dir := range directions {
			if _, ok := md.Attribute(dir); ok {
				m.Direction = dir
				break
			}
		}
		for _, a := range md.Attributes {
			if a.Key != "rtpmap" {
				continue
			}
			// "96 VP8/90000"
			if _, codec, ok := strings.Cut(a.Value, " "); ok {
				m.Codecs = append(m.Codecs, codec)
			}
		}
		s.Media = append(s.Media, m)
	}
	return s, nil
}

func (s Summary) String() string {
	parts := make([]string, 0, len(s.Media))
	for _, m := range s.Media {
		parts = append(parts, fmt.Sprintf("%s/%s/%s[%s]", m.Kind, m.Mid, m.Direction, strings.Join(m.Codecs, ",")))
	}
	return strings.Join(parts, " ")
}
