package digiself

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrNotFound             = errors.New("not found")
	ErrMissingCredential    = errors.New("missing credential")
	ErrCalendarNotConnected = errors.New("calendar is not connected")
	ErrEmptyResponse        = errors.New("empty response from LLM")
)

// ErrTagTokenExceeded tags provider errors caused by an oversized prompt.
var ErrTagTokenExceeded = goerr.NewTag("token_exceeded")
