package circuit

import "errors"

var (
	ErrUnknownNode      = errors.New("circuit: unknown node")
	ErrMalformedElement = errors.New("circuit: malformed element")
	ErrUnknownControl   = errors.New("circuit: unknown control element")
)
