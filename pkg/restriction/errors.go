package restriction

import "errors"

var (
	ErrInvalidVariant = errors.New("invalid restricted mode variant")
	ErrInvalidPattern = errors.New("invalid route pattern")
	ErrInvalidScope   = errors.New("invalid route scope")
)
