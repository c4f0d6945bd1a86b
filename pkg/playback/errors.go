package playback

import (
	"errors"
	"fmt"
)

// DecodeError indicates the synthesized audio payload could not be
// decoded into PCM. Playback is abandoned; the caller falls back to a
// text-only reveal.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("playback: decode audio: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}
