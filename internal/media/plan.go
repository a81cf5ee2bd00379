package media

// StageRole describes how a stage sits in the pipeline topology.
type StageRole int

const (
	// RoleProducer stages read from the network and write to stdout.
	RoleProducer StageRole = 1 << iota
	// RoleTransformer stages read stdin and write stdout.
	RoleTransformer
	// RoleTerminal marks the stage whose stdout feeds the response sink.
	RoleTerminal
)

// StageSpec describes one subprocess of a pipeline plan.
type StageSpec struct {
	Name       string // short label for logs and errors
	Executable string
	Args       []string
	Role       StageRole
}

// Plan is an immutable pipeline description, built once per download request
// and consumed exactly once by the orchestrator.
type Plan struct {
	Stages      []StageSpec
	Filename    string // response attachment filename
	ContentType string
}

// Tools carries the external tool binaries resolved at startup.
type Tools struct {
	YTDLP  string
	FFmpeg string
}

// Format selection preference: mp4 video + mp4-compatible audio, then best
// mp4, then best overall. yt-dlp merges the pair internally via ffmpeg.
const videoFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

const audioFormat = "bestaudio/best"

// BuildPlan decides the pipeline topology for a download: one pass-through
// stage for video, or extract-audio piped into an MP3 transcode for audio.
// Pure and deterministic; it never executes anything.
//
// Both download stages run with certificate validation disabled and warnings
// suppressed. That is a deliberate trust trade-off: sources span many
// platforms with flaky TLS setups, and the permissive-fetch posture of the
// original service is kept rather than silently tightened.
func BuildPlan(t Tools, rawURL string, kind OutputKind, title string) Plan {
	plan := Plan{
		Filename:    SanitizeFilename(title, kind),
		ContentType: kind.ContentType(),
	}

	if kind == KindAudio {
		plan.Stages = []StageSpec{
			{
				Name:       "ytdlp",
				Executable: t.YTDLP,
				Args:       extractArgs(t, audioFormat, rawURL),
				Role:       RoleProducer,
			},
			{
				Name:       "ffmpeg",
				Executable: t.FFmpeg,
				Args: []string{
					"-hide_banner",
					"-loglevel", "error",
					"-i", "pipe:0",
					"-vn",
					"-codec:a", "libmp3lame",
					"-b:a", "192k",
					"-f", "mp3",
					"pipe:1",
				},
				Role: RoleTransformer | RoleTerminal,
			},
		}
		return plan
	}

	plan.Stages = []StageSpec{
		{
			Name:       "ytdlp",
			Executable: t.YTDLP,
			Args:       extractArgs(t, videoFormat, rawURL),
			Role:       RoleProducer | RoleTerminal,
		},
	}
	return plan
}

func extractArgs(t Tools, format, rawURL string) []string {
	args := []string{
		"-f", format,
		"--no-check-certificates",
		"--no-warnings",
		"--prefer-free-formats",
		"--quiet",
	}
	if t.FFmpeg != "" {
		args = append(args, "--ffmpeg-location", t.FFmpeg)
	}
	return append(args, "-o", "-", rawURL)
}
