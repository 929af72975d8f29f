package adapter

import "context"

// Intent is the coarse routing category for a fresh conversation turn.
type Intent string

const (
	IntentGrading Intent = "grading"
	IntentGeneral Intent = "general"
)

// IntentClassifier decides whether a message starts a grading workflow.
// It is consulted only after the router's deterministic guards have passed;
// the keyword short-circuit and mid-workflow resume never reach it.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) (Intent, error)
}
