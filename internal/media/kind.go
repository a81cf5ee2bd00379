// Package media holds the MediaFetch domain core: output kinds, metadata
// resolution, filename sanitizing, and pipeline plan construction. Nothing in
// this package starts a process except the metadata resolver's single bounded
// tool invocation.
package media

// OutputKind selects the pipeline topology and the response content type.
type OutputKind int

const (
	KindVideo OutputKind = iota
	KindAudio
)

// ParseOutputKind maps a wire format value to an OutputKind. Only "mp3"
// selects audio; everything else (including empty) is video, matching the
// original service behaviour.
func ParseOutputKind(format string) OutputKind {
	if format == "mp3" {
		return KindAudio
	}
	return KindVideo
}

// Ext returns the download filename extension including the dot.
func (k OutputKind) Ext() string {
	if k == KindAudio {
		return ".mp3"
	}
	return ".mp4"
}

// ContentType returns the HTTP response content type for the kind.
func (k OutputKind) ContentType() string {
	if k == KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

func (k OutputKind) String() string {
	if k == KindAudio {
		return "mp3"
	}
	return "mp4"
}
