package errors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid")
	ErrDownload      = errors.New("media download failed")
	ErrConversion    = errors.New("media conversion failed")
	ErrMissingConfig = errors.New("missing required configuration")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
