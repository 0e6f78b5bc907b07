package scoring

import (
	"errors"
	"fmt"
)

// ErrUnknownColor is returned when a color is not one of the four levels.
var ErrUnknownColor = errors.New("unknown color level")

// Wrap attaches the offending value to a sentinel.
func Wrap(value string, kind error) error {
	return fmt.Errorf("%q: %w", value, kind)
}
