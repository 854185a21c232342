package types

import "fmt"

// ConstructionError is returned when a domain object cannot be built from a
// Value, either because fields are missing or mistyped or because a
// referenced entity, player or game-data entry does not exist.
type ConstructionError struct {
	Entity string
	Reason string
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to construct %s: %s: %v", e.Entity, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to construct %s: %s", e.Entity, e.Reason)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func constructionErr(entity string, err error) error {
	return &ConstructionError{Entity: entity, Reason: "invalid value", Err: err}
}

func constructionErrf(entity, format string, args ...interface{}) error {
	return &ConstructionError{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}
