package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		title string
		kind  OutputKind
		want  string
	}{
		{
			name:  "plain title",
			title: "My Video",
			kind:  KindVideo,
			want:  "My Video.mp4",
		},
		{
			name:  "special characters dropped",
			title: `A/B\C:D*E?F"G<H>I|J`,
			kind:  KindVideo,
			want:  "ABCDEFGHIJ.mp4",
		},
		{
			name:  "audio extension",
			title: "Song Title",
			kind:  KindAudio,
			want:  "Song Title.mp3",
		},
		{
			name:  "empty title falls back",
			title: "",
			kind:  KindVideo,
			want:  "media.mp4",
		},
		{
			name:  "all-symbol title falls back",
			title: "!!!***///",
			kind:  KindAudio,
			want:  "media.mp3",
		},
		{
			name:  "surrounding whitespace trimmed",
			title: "  padded  ",
			kind:  KindVideo,
			want:  "padded.mp4",
		},
		{
			name:  "non-ascii letters dropped",
			title: "Münchner Straße 42",
			kind:  KindVideo,
			want:  "Mnchner Strae 42.mp4",
		},
		{
			name:  "cjk title falls back to ascii remainder",
			title: "日本語 video",
			kind:  KindVideo,
			want:  "video.mp4",
		},
		{
			name:  "whitespace runes become plain spaces",
			title: "tab\there\u00a0nbsp",
			kind:  KindVideo,
			want:  "tab here nbsp.mp4",
		},
		{
			name:  "underscores and hyphens kept",
			title: "snake_case-title",
			kind:  KindAudio,
			want:  "snake_case-title.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.title, tt.kind))
		})
	}
}

func TestSanitizeFilenameIsHeaderSafe(t *testing.T) {
	// The result goes verbatim into Content-Disposition, so every byte must
	// stay printable ASCII.
	name := SanitizeFilename("Grüße 🎵 – video clip", KindAudio)
	for _, r := range name {
		assert.True(t, r >= 0x20 && r < 0x7f, "rune %q is not printable ASCII", r)
	}
}
