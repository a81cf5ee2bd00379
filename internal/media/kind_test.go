package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutputKind(t *testing.T) {
	assert.Equal(t, KindAudio, ParseOutputKind("mp3"))
	assert.Equal(t, KindVideo, ParseOutputKind("mp4"))
	assert.Equal(t, KindVideo, ParseOutputKind(""))
	assert.Equal(t, KindVideo, ParseOutputKind("MP3"))
	assert.Equal(t, KindVideo, ParseOutputKind("flac"))
}

func TestOutputKindProperties(t *testing.T) {
	assert.Equal(t, ".mp3", KindAudio.Ext())
	assert.Equal(t, ".mp4", KindVideo.Ext())
	assert.Equal(t, "audio/mpeg", KindAudio.ContentType())
	assert.Equal(t, "video/mp4", KindVideo.ContentType())
	assert.Equal(t, "mp3", KindAudio.String())
	assert.Equal(t, "mp4", KindVideo.String())
}
