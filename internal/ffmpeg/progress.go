package ffmpeg

import (
	"bytes"
	"strconv"
	"strings"
)

// ParseBitrate extracts the bitrate metric in kbit/s from one output line.
// Both the -progress form ("bitrate=1234.5kbits/s") and the padded stats form
// ("bitrate= 512.0kbits/s") are recognised. N/A and unparsable values yield
// no metric.
func ParseBitrate(line string) (float64, bool) {
	fields := strings.Fields(line)
	for i, field := range fields {
		if !strings.HasPrefix(field, "bitrate=") {
			continue
		}
		value := strings.TrimPrefix(field, "bitrate=")
		if value == "" && i+1 < len(fields) {
			value = fields[i+1]
		}
		value = strings.TrimSuffix(value, "kbits/s")
		value = strings.TrimSuffix(value, "bits/s")
		if value == "" || strings.EqualFold(value, "N/A") {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// scanLines splits on LF, CR, or CRLF. ffmpeg redraws its stats line with
// bare carriage returns.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// Need one more byte to know whether this is CRLF.
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
