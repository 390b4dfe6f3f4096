package job

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"streamworker/internal/services"
)

// FieldError describes one rejected wire field.
type FieldError struct {
	Field   string
	Problem string
}

// ValidationError lists every field problem found in an envelope.
type ValidationError struct {
	Kind     Kind
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Problem)
	}
	kind := string(e.Kind)
	if kind == "" {
		kind = "job"
	}
	return fmt.Sprintf("invalid %s job: %s", kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return services.ErrValidation }

type validator struct {
	env      *Envelope
	problems []FieldError
}

func (v *validator) fail(field, format string, args ...any) {
	v.problems = append(v.problems, FieldError{Field: field, Problem: fmt.Sprintf(format, args...)})
}

// Validate checks required fields and coerces types, producing a fresh typed
// job. The envelope is not modified, and validating the Envelope() of a valid
// job yields an identical job.
func Validate(env *Envelope) (Job, error) {
	if env == nil {
		return nil, &ValidationError{Problems: []FieldError{{Field: "body", Problem: "missing"}}}
	}
	kind, err := env.kind()
	if err != nil {
		return nil, &ValidationError{Problems: []FieldError{{Field: "type", Problem: err.Error()}}}
	}
	v := &validator{env: env}
	var result Job
	switch kind {
	case KindTransform:
		result = v.transform()
	default:
		result = v.stream()
	}
	if len(v.problems) > 0 {
		return nil, &ValidationError{Kind: kind, Problems: v.problems}
	}
	return result, nil
}

func (v *validator) stream() StreamJob {
	return StreamJob{
		JobID:     v.requiredString("jobId"),
		StreamID:  v.requiredString("streamId"),
		SourceURL: v.requiredString("s3Url"),
		SourceKey: v.optionalString("s3Key"),
		Ingest:    v.requiredString("ingest"),
		StreamKey: v.requiredString("streamKey"),
		FPS:       v.positiveInt("fps", true),
		VideoKbps: v.positiveInt("vb", true),
		AudioKbps: v.positiveInt("ab", true),
		Loop:      v.flag("loop"),
		Title:     v.optionalString("title"),
		Category:  v.optionalString("category"),
	}
}

func (v *validator) transform() TransformJob {
	return TransformJob{
		JobID:     v.requiredString("jobId"),
		VideoID:   v.requiredString("videoId"),
		InputKey:  v.requiredString("inputS3Key"),
		OutputKey: v.requiredString("outputS3Key"),
		MaxHeight: v.positiveInt("maxHeight", false),
	}
}

func (v *validator) requiredString(field string) string {
	value, present, ok := v.stringField(field)
	switch {
	case !ok:
		return ""
	case !present || value == "":
		v.fail(field, "required")
	}
	return value
}

func (v *validator) optionalString(field string) string {
	value, _, _ := v.stringField(field)
	return value
}

func (v *validator) stringField(field string) (string, bool, bool) {
	raw, present := v.env.Field(field)
	if !present || raw == nil {
		return "", false, true
	}
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value), true, true
	case json.Number:
		return value.String(), true, true
	default:
		v.fail(field, "must be a string, got %T", raw)
		return "", true, false
	}
}

func (v *validator) positiveInt(field string, required bool) int {
	raw, present := v.env.Field(field)
	if !present || raw == nil {
		if required {
			v.fail(field, "required")
		}
		return 0
	}
	value, err := coerceInt(raw)
	if err != nil {
		v.fail(field, "%v", err)
		return 0
	}
	if value <= 0 {
		v.fail(field, "must be positive, got %d", value)
		return 0
	}
	return value
}

func (v *validator) flag(field string) bool {
	raw, present := v.env.Field(field)
	if !present || raw == nil {
		return false
	}
	value, err := coerceBool(raw)
	if err != nil {
		v.fail(field, "%v", err)
		return false
	}
	return value
}

func coerceInt(raw any) (int, error) {
	switch value := raw.(type) {
	case int:
		return boundedInt(int64(value))
	case int64:
		return boundedInt(value)
	case float64:
		return integralFloat(value)
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return boundedInt(n)
		}
		f, err := value.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", value.String())
		}
		return integralFloat(f)
	case string:
		trimmed := strings.TrimSpace(value)
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return boundedInt(n)
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", value)
		}
		return integralFloat(f)
	default:
		return 0, fmt.Errorf("must be an integer, got %T", raw)
	}
}

func boundedInt(n int64) (int, error) {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("out of range: %d", n)
	}
	return int(n), nil
}

func integralFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("must be an integer, got %v", f)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("out of range: %v", f)
	}
	return int(f), nil
}

func coerceBool(raw any) (bool, error) {
	switch value := raw.(type) {
	case bool:
		return value, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
		return false, fmt.Errorf("must be a boolean, got %q", value)
	case json.Number, float64, int, int64:
		n, err := coerceInt(value)
		if err != nil || (n != 0 && n != 1) {
			return false, fmt.Errorf("must be a boolean, got %v", value)
		}
		return n == 1, nil
	default:
		return false, fmt.Errorf("must be a boolean, got %T", raw)
	}
}
