package envelope

import "fmt"

// Decode stages reported by DecodeError
const (
	StageEvent      = "event"
	StageBase64     = "base64"
	StageDecompress = "decompress"
	StageJSON       = "json"
	StageFields     = "fields"
)

// DecodeError reports an envelope that could not be decoded.
// It is fatal for the cycle that received it.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode envelope (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
