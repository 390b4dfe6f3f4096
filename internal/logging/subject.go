package logging

import "strings"

// FormatSubject builds the job subject shown in console output, for example
// "Stream job-42".
func FormatSubject(kind, jobID string) string {
	kind = strings.TrimSpace(kind)
	jobID = strings.TrimSpace(jobID)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + strings.ToLower(kind[1:])
	}
	switch {
	case kind != "" && jobID != "":
		return kind + " " + jobID
	case jobID != "":
		return "Job " + jobID
	default:
		return kind
	}
}
