package media

import (
	"testing"

	"radio-stream/app/model"
)

func TestKindForMIME(t *testing.T) {
	cases := []struct {
		mime string
		kind model.MediaKind
		ok   bool
	}{
		{"audio/mpeg", model.MediaKindAudio, true},
		{"audio/flac", model.MediaKindAudio, true},
		{"video/mp4", model.MediaKindVideo, true},
		{"video/x-matroska", model.MediaKindVideo, true},
		{"text/plain", "", false},
		{"application/pdf", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		kind, ok := KindForMIME(c.mime)
		if ok != c.ok || kind != c.kind {
			t.Errorf("KindForMIME(%q) = (%q, %v), 期望 (%q, %v)", c.mime, kind, ok, c.kind, c.ok)
		}
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("audio/ogg") {
		t.Error("audio/ogg 应在支持列表中")
	}
	if IsSupported("image/png") {
		t.Error("image/png 不应在支持列表中")
	}
}
