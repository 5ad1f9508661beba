package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotRecognized      = errors.New("not a recognized file")
	ErrUnresolvableToken  = errors.New("unresolvable token")
	ErrFilterRejected     = errors.New("filter rejected")
	ErrPersistence        = errors.New("persistence failure")
	ErrConfiguration      = errors.New("configuration error")
	ErrAnonymization      = errors.New("anonymization failure")
	ErrNotFound           = errors.New("field not found")
	ErrDestinationInvalid = errors.New("destination invalid")
	ErrUnreadable         = errors.New("source unreadable")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome is the terminal state of one enumerated file.
type Outcome string

const (
	OutcomePersisted Outcome = "persisted"
	OutcomePlanned   Outcome = "planned"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Classify maps a per-file processing error to its outcome. A nil error means
// the file was persisted.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomePersisted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, ErrNotRecognized):
		return OutcomeSkipped
	case errors.Is(err, ErrFilterRejected):
		return OutcomeFiltered
	default:
		return OutcomeFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "sort failure"
	}
	return strings.Join(parts, ": ")
}
