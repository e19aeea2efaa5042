package schema

import "errors"

// Sentinels returned by validate.Parse. Callers map them onto generation
// failure kinds with errors.Is.
var (
	ErrMalformedResponse = errors.New("malformed response")
	ErrSchemaViolation   = errors.New("schema violation")
)

// RoutineResponse is the JSON object the model is instructed to return.
// Pointers distinguish a missing or null key from an empty array.
type RoutineResponse struct {
	MorningRoutine *[]StepSpec `json:"morningRoutine"`
	EveningRoutine *[]StepSpec `json:"eveningRoutine"`
}

// StepSpec is one step as the model names it. Descriptions are derived
// locally and never taken from the model.
type StepSpec struct {
	StepName    *string `json:"stepName"`
	ProductName *string `json:"productName"`
}

// Step is a validated StepSpec.
type Step struct {
	Name    string
	Product string
}

// Routine is a validated RoutineResponse. Either period may be empty; the
// orchestrator decides what an empty period means.
type Routine struct {
	Morning []Step
	Evening []Step
}
