package job_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"streamworker/internal/job"
	"streamworker/internal/services"
)

func decode(t *testing.T, body string) *job.Envelope {
	t.Helper()
	env, err := job.DecodeEnvelope(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	return env
}

const streamBody = `{"type":"STREAM","jobId":"j1","streamId":"s1","s3Url":"http://x/v.mp4","ingest":"rtmp://h","streamKey":"k","fps":30,"vb":2000,"ab":128,"loop":false}`

func TestValidateStreamJob(t *testing.T) {
	validated, err := job.Validate(decode(t, streamBody))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	stream, ok := validated.(job.StreamJob)
	if !ok {
		t.Fatalf("expected StreamJob, got %T", validated)
	}
	want := job.StreamJob{
		JobID: "j1", StreamID: "s1", SourceURL: "http://x/v.mp4", Ingest: "rtmp://h",
		StreamKey: "k", FPS: 30, VideoKbps: 2000, AudioKbps: 128,
	}
	if stream != want {
		t.Fatalf("unexpected job:\n got %+v\nwant %+v", stream, want)
	}
}

func TestValidateCoercesLooseTypes(t *testing.T) {
	body := `{"jobId":"j2","streamId":7,"s3Url":" http://x/v.mp4 ","ingest":"live.example","streamKey":"k",
		"fps":"30","vb":2500.0,"ab":"128.0","loop":"yes"}`
	validated, err := job.Validate(decode(t, body))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	stream := validated.(job.StreamJob)
	if stream.FPS != 30 || stream.VideoKbps != 2500 || stream.AudioKbps != 128 {
		t.Fatalf("expected integer coercion, got %+v", stream)
	}
	if !stream.Loop {
		t.Fatal("expected loop to coerce to true")
	}
	if stream.StreamID != "7" || stream.SourceURL != "http://x/v.mp4" {
		t.Fatalf("expected trimmed strings, got %+v", stream)
	}
	if validated.Kind() != job.KindStream {
		t.Fatalf("absent type must imply STREAM, got %s", validated.Kind())
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	body := `{"type":"stream","jobId":"j3","streamId":"s3","s3Url":"http://x/v.mp4","s3Key":"videos/v.mp4",
		"ingest":"h","streamKey":"k","fps":"25","vb":"1800","ab":96,"loop":1,"title":"Demo"}`
	first, err := job.Validate(decode(t, body))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	data, err := json.Marshal(first.(job.StreamJob).Envelope())
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	second, err := job.Validate(decode(t, string(data)))
	if err != nil {
		t.Fatalf("re-Validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("validation not idempotent:\n first %+v\nsecond %+v", first, second)
	}

	transform, err := job.Validate(job.NewEnvelope(map[string]any{
		"type": "TRANSFORM", "jobId": "t1", "videoId": "v1",
		"inputS3Key": "in.mp4", "outputS3Key": "out.mp4", "maxHeight": "480",
	}))
	if err != nil {
		t.Fatalf("Validate transform: %v", err)
	}
	again, err := job.Validate(transform.(job.TransformJob).Envelope())
	if err != nil || !reflect.DeepEqual(transform, again) {
		t.Fatalf("transform validation not idempotent: %+v vs %+v (%v)", transform, again, err)
	}
}

func TestValidateMissingFPS(t *testing.T) {
	body := `{"jobId":"j4","streamId":"s4","s3Url":"http://x/v.mp4","ingest":"h","streamKey":"k","vb":2000,"ab":128}`
	_, err := job.Validate(decode(t, body))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation marker, got %v", err)
	}
	var verr *job.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) != 1 || verr.Problems[0].Field != "fps" {
		t.Fatalf("expected a single fps problem, got %+v", verr.Problems)
	}
	if !strings.Contains(err.Error(), "fps: required") {
		t.Fatalf("expected field detail in message, got %q", err.Error())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"fractional fps": `{"jobId":"j","streamId":"s","s3Url":"u","ingest":"h","streamKey":"k","fps":29.97,"vb":1,"ab":1}`,
		"zero bitrate":   `{"jobId":"j","streamId":"s","s3Url":"u","ingest":"h","streamKey":"k","fps":30,"vb":0,"ab":1}`,
		"word fps":       `{"jobId":"j","streamId":"s","s3Url":"u","ingest":"h","streamKey":"k","fps":"fast","vb":1,"ab":1}`,
		"huge fps":       `{"jobId":"j","streamId":"s","s3Url":"u","ingest":"h","streamKey":"k","fps":99999999999,"vb":1,"ab":1}`,
		"huge float fps": `{"jobId":"j","streamId":"s","s3Url":"u","ingest":"h","streamKey":"k","fps":99999999999.0,"vb":1,"ab":1}`,
		"huge string vb": `{"jobId":"j","streamId":"s","s3Url":"u","ingest":"h","streamKey":"k","fps":30,"vb":"99999999999","ab":1}`,
		"bad loop":       `{"jobId":"j","streamId":"s","s3Url":"u","ingest":"h","streamKey":"k","fps":30,"vb":1,"ab":1,"loop":"maybe"}`,
		"object key":     `{"jobId":"j","streamId":"s","s3Url":{"u":1},"ingest":"h","streamKey":"k","fps":30,"vb":1,"ab":1}`,
		"unknown kind":   `{"type":"ARCHIVE","jobId":"j"}`,
		"blank job id":   `{"type":"TRANSFORM","jobId":"  ","videoId":"v","inputS3Key":"a","outputS3Key":"b"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := job.Validate(decode(t, body)); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2]`, `null`} {
		if _, err := job.DecodeEnvelope(strings.NewReader(body)); err == nil {
			t.Fatalf("expected decode error for %q", body)
		}
	}
}

func TestEnvelopeSubjectIsBestEffort(t *testing.T) {
	subject := decode(t, `{"type":"transform","jobId":"t9","videoId":42}`).Subject()
	if subject.Kind != job.KindTransform || subject.JobID != "t9" || subject.SubjectID != "42" {
		t.Fatalf("unexpected subject %+v", subject)
	}
	subject = decode(t, `{"type":"bogus","jobId":"x","streamId":"s"}`).Subject()
	if subject.Kind != job.KindStream || subject.SubjectID != "s" {
		t.Fatalf("unknown kinds should fall back to stream identity, got %+v", subject)
	}
}

func TestStatusReportShapes(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	stream := job.Subject{Kind: job.KindStream, JobID: "j1", SubjectID: "s1"}

	active, _ := json.Marshal(stream.Active("edge-1", at))
	if string(active) != `{"streamId":"s1","jobId":"j1","status":"ACTIVE","startedAt":"2026-03-01T11:00:00Z","worker":"edge-1"}` {
		t.Fatalf("unexpected ACTIVE body %s", active)
	}

	progress, _ := json.Marshal(stream.Progress("edge-1", at, 1234.5))
	if !strings.Contains(string(progress), `"bitrate":1234.5`) || !strings.Contains(string(progress), `"timestamp":"2026-03-01T11:00:00Z"`) {
		t.Fatalf("unexpected PROGRESS body %s", progress)
	}

	transform := job.Subject{Kind: job.KindTransform, JobID: "t1", SubjectID: "v1"}
	done, _ := json.Marshal(transform.Completed("edge-1", at, "out/v1.mp4"))
	if string(done) != `{"videoId":"v1","jobId":"t1","status":"COMPLETED","endedAt":"2026-03-01T11:00:00Z","worker":"edge-1","outputS3Key":"out/v1.mp4"}` {
		t.Fatalf("unexpected COMPLETED body %s", done)
	}

	failed := stream.Failed("edge-1", at, "")
	if failed.Error == "" || !failed.Status.IsTerminal() {
		t.Fatalf("FAILED must carry an error, got %+v", failed)
	}
	if job.StatusProgress.IsTerminal() {
		t.Fatal("PROGRESS is not terminal")
	}
}
