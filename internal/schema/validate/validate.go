package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/skinroutine/internal/schema"
)

// Parse extracts the JSON object embedded in a model reply and validates it
// against the routine schema. The object spans the first '{' through the last
// '}', so surrounding prose and markdown fences are tolerated.
//
// Failures wrap schema.ErrMalformedResponse when no object can be decoded and
// schema.ErrSchemaViolation when the object has the wrong shape.
func Parse(raw string) (*schema.Routine, error) {
	payload, ok := extractObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in reply", schema.ErrMalformedResponse)
	}

	var resp schema.RoutineResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: field %q: expected %s, got %s", schema.ErrSchemaViolation, typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return nil, fmt.Errorf("%w: JSON parse failed: %v", schema.ErrMalformedResponse, err)
	}

	morning, err := validatePeriod(resp.MorningRoutine, "morningRoutine")
	if err != nil {
		return nil, err
	}
	evening, err := validatePeriod(resp.EveningRoutine, "eveningRoutine")
	if err != nil {
		return nil, err
	}
	return &schema.Routine{Morning: morning, Evening: evening}, nil
}

// extractObject returns raw[first '{' : last '}'+1].
func extractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func validatePeriod(specs *[]schema.StepSpec, key string) ([]schema.Step, error) {
	if specs == nil {
		return nil, fmt.Errorf("%w: %s is required", schema.ErrSchemaViolation, key)
	}
	out := make([]schema.Step, 0, len(*specs))
	for i, s := range *specs {
		prefix := fmt.Sprintf("%s[%d]", key, i)
		if s.StepName == nil || strings.TrimSpace(*s.StepName) == "" {
			return nil, fmt.Errorf("%w: %s: stepName is required", schema.ErrSchemaViolation, prefix)
		}
		if s.ProductName == nil {
			return nil, fmt.Errorf("%w: %s: productName is required", schema.ErrSchemaViolation, prefix)
		}
		out = append(out, schema.Step{
			Name:    strings.TrimSpace(*s.StepName),
			Product: strings.TrimSpace(*s.ProductName),
		})
	}
	return out, nil
}
