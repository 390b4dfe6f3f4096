package ffmpeg

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"streamworker/internal/job"
)

// IngestURL builds the push destination. An ingest that already carries a
// scheme is used as the base as-is; a bare host is treated as RTMP.
func IngestURL(ingest, streamKey string) string {
	ingest = strings.TrimRight(strings.TrimSpace(ingest), "/")
	if !strings.Contains(ingest, "://") {
		ingest = "rtmp://" + ingest
	}
	return ingest + "/" + strings.TrimLeft(streamKey, "/")
}

// StreamArgs returns the argument vector for a live push of input.
func StreamArgs(j job.StreamJob, input string) []string {
	gop := strconv.Itoa(j.FPS * 2)
	vb := fmt.Sprintf("%dk", j.VideoKbps)
	loop := "0"
	if j.Loop {
		loop = "-1"
	}
	return []string{
		"-hide_banner", "-loglevel", "info",
		"-progress", "pipe:1",
		"-stream_loop", loop,
		"-re",
		"-i", input,
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-preset", "veryfast",
		"-b:v", vb, "-maxrate", vb, "-bufsize", fmt.Sprintf("%dk", j.VideoKbps*2),
		"-r", strconv.Itoa(j.FPS), "-g", gop, "-keyint_min", gop,
		"-sc_threshold", "0", "-profile:v", "high", "-tune", "zerolatency",
		"-c:a", "aac", "-b:a", fmt.Sprintf("%dk", j.AudioKbps), "-ac", "2", "-ar", "44100",
		"-f", "flv", IngestURL(j.Ingest, j.StreamKey),
	}
}

// TransformArgs returns the argument vector for an MP4 transcode capped at
// maxHeight lines. Sources shorter than the cap keep their height.
func TransformArgs(input, output string, maxHeight int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", input,
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", maxHeight),
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		"-f", "mp4", output,
	}
}

// redactArgs hides stream keys and signed query strings from logged argv.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = arg
		parsed, err := url.Parse(arg)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			continue
		}
		switch {
		case strings.HasPrefix(parsed.Scheme, "rtmp"):
			parsed.Path = "/****"
		case parsed.RawQuery != "":
			parsed.RawQuery = "****"
		default:
			continue
		}
		out[i] = parsed.String()
	}
	return out
}
