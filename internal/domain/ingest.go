package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateEvent checks coordinate ranges and that a timestamp is present.
func ValidateEvent(e Event) error {
	err := Validator().Struct(e)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate event: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "latitude":
			msgs = append(msgs, fmt.Sprintf("latitude %v out of range [-90, 90]", fe.Value()))
		case "longitude":
			msgs = append(msgs, fmt.Sprintf("longitude %v out of range [-180, 180]", fe.Value()))
		case "required":
			msgs = append(msgs, strings.ToLower(fe.Field())+" is required")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid event: %s", strings.Join(msgs, "; "))
}

// NormalizeEvent truncates the timestamp to whole seconds, the precision of
// the sequence key.
func NormalizeEvent(e Event) Event {
	e.Timestamp = e.Timestamp.Truncate(time.Second)
	return e
}

// Dedupe collapses events sharing a sequence key, keeping the first
// occurrence, and returns the survivors in input order with the number dropped.
func Dedupe(events []Event) ([]Event, int) {
	seen := make(map[SequenceKey]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out, len(events) - len(out)
}
