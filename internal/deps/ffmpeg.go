package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// RequiredEncoders are the ffmpeg encoders every job's argv relies on.
var RequiredEncoders = []string{"libx264", "aac"}

const probeTimeout = 10 * time.Second

// CheckFFmpeg resolves binary, records its version, and confirms the
// required encoders are compiled in.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	status := checkBinary(Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Required for streaming and transcoding",
	})
	if !status.Available {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	versionOut, err := commandContext(ctx, status.Command, "-hide_banner", "-version").Output()
	if err != nil {
		status.Available = false
		status.Detail = fmt.Sprintf("%s -version failed: %v", status.Command, err)
		return status
	}
	status.Version = parseVersion(string(versionOut))

	encodersOut, err := commandContext(ctx, status.Command, "-hide_banner", "-encoders").Output()
	if err != nil {
		status.Available = false
		status.Detail = fmt.Sprintf("%s -encoders failed: %v", status.Command, err)
		return status
	}
	if missing := missingEncoders(string(encodersOut), RequiredEncoders); len(missing) > 0 {
		status.Available = false
		status.Detail = "missing encoders: " + strings.Join(missing, ", ")
	}
	return status
}

// parseVersion extracts the token after "ffmpeg version".
func parseVersion(output string) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 3 && fields[0] == "ffmpeg" && fields[1] == "version" {
			return fields[2]
		}
	}
	return ""
}

// missingEncoders scans `ffmpeg -encoders` output, whose rows look like
// " V....D libx264  libx264 H.264 ...".
func missingEncoders(output string, want []string) []string {
	found := make(map[string]bool, len(want))
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		found[fields[1]] = true
	}
	var missing []string
	for _, name := range want {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
