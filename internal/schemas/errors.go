package schemas

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("invalid request")

var errTrailing = errors.New("unexpected data after JSON object")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}
