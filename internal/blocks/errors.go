package blocks

import "errors"

// Every mutation returns its input unchanged together with one of these
// when it refuses to act.
var (
	ErrUnknownComponent = errors.New("unknown component type")
	ErrBlockNotFound    = errors.New("block not found")
	ErrCycle            = errors.New("invalid move: block would become its own ancestor")
	ErrInvalidPlacement = errors.New("invalid placement")
	ErrInvalidDevice    = errors.New("unknown device class")
)
