package jsonx

import "fmt"

// ExtractionError reports that no strategy could recover a parseable
// object from the raw model text. Offset is the byte position where
// parsing last failed, or -1 when no parse got far enough to say.
type ExtractionError struct {
	Length int
	Offset int
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("no JSON object found in response (%d bytes, last failure at offset %d): %s", e.Length, e.Offset, e.Reason)
	}
	return fmt.Sprintf("no JSON object found in response (%d bytes): %s", e.Length, e.Reason)
}
