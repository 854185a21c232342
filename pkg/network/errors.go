package network

import (
	"errors"

	"github.com/cbodonnell/evervoid/pkg/value"
)

func isParseError(err error) bool {
	var parseErr *value.ParseError
	return errors.As(err, &parseErr)
}
