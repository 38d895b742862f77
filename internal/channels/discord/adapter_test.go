package discord

import (
	"testing"

	"github.com/haasonsaas/stark/pkg/models"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatalf("NewAdapter() with no token should error")
	}
}

func TestNewAdapterType(t *testing.T) {
	a, err := NewAdapter(Config{Token: "fake-token"})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if a.Type() != models.ChannelDiscord {
		t.Fatalf("Type() = %v, want discord", a.Type())
	}
}

func TestDetectKindByContentType(t *testing.T) {
	cases := map[string]string{
		"image/png":       "image",
		"audio/mpeg":       "audio",
		"video/mp4":        "video",
		"application/pdf":  "document",
		"":                 "document",
	}
	for contentType, want := range cases {
		if got := string(detectKind(contentType)); got != want {
			t.Errorf("detectKind(%q) = %q, want %q", contentType, got, want)
		}
	}
}
