package value

import "fmt"

// ParseError is returned when text cannot be parsed into a Value.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
}

// TypeMismatchError is returned when a typed accessor is used on a Value of
// another kind. Key is set when the Value was read as an attribute.
type TypeMismatchError struct {
	Want Kind
	Got  Kind
	Key  string
}

func (e *TypeMismatchError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("attribute %q: expected %s, got %s", e.Key, e.Want, e.Got)
	}
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

// MissingAttributeError is returned when a required attribute is absent.
type MissingAttributeError struct {
	Key string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing attribute %q", e.Key)
}
