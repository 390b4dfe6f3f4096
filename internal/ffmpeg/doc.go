// Package ffmpeg builds media tool command lines and supervises the resulting
// processes.
//
// A Supervisor walks a live push through three phases. StartStream holds the
// process through a short startup grace period, Monitor turns bitrate lines
// into progress callbacks for a bounded window, and Wait lets the push run to
// its natural end or stops it once the max runtime elapses. Transcodes skip
// the first two phases and run under their own timeout.
//
// Processes are started in their own process group. Stopping one sends
// SIGTERM to the group and escalates to SIGKILL after the terminate grace.
package ffmpeg
