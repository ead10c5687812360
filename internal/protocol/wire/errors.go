package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProtocolError reports a frame or payload that could not be decoded.
type ProtocolError struct {
	Op  string // "decode frame", "decode payload", ...
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wire: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrorShape is the error object carried by a failed response.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts a code sent as a string or as a number. A numeric
// code is kept in its decimal text form.
func (e *ErrorShape) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Message = raw.Message
	e.Code = ""

	code := bytes.TrimSpace(raw.Code)
	switch {
	case len(code) == 0 || bytes.Equal(code, []byte("null")):
	case code[0] == '"':
		if err := json.Unmarshal(code, &e.Code); err != nil {
			return err
		}
	default:
		var n json.Number
		if err := json.Unmarshal(code, &n); err != nil {
			return fmt.Errorf("error code must be a string or a number: %w", err)
		}
		e.Code = n.String()
	}
	return nil
}
