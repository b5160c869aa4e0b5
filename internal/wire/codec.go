// -*- Mode: Go; indent-tabs-mode: t -*-

package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformed is returned by Decode for a line that either is not
// valid UTF-8 or is not valid JSON for its message type. A missing or
// unrecognised "type" field yields ErrUnknownType instead.
// Per §4.1 this is never fatal: callers log and skip.
var ErrMalformed = errors.New("wire: malformed message")

// ErrUnknownType is returned by Decode for a syntactically valid
// message whose "type" is not in the closed taxonomy. Per §4.1,
// unknown types are silently ignored by callers.
var ErrUnknownType = errors.New("wire: unknown message type")

// ErrMissingFields is returned by Decode when a message's type is
// known but a required field is absent. §4.1: this discards the
// message; in the handshake/auth phase it additionally terminates the
// session (a decision made by the session package, not here).
var ErrMissingFields = errors.New("wire: missing required fields")

// Encode marshals msg as JSON followed by a single '\n', per §4.1's
// wire format. msg must be one of Handshake, AuthResponse, EventBatch
// or Disconnect.
func Encode(msg interface{}) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: cannot encode %T: %w", msg, err)
	}
	return append(data, '\n'), nil
}

type envelope struct {
	Type Type `json:"type"`
}

// Decode parses a single framed line (without its trailing '\n') into
// one of the taxonomy's concrete message types.
func Decode(line []byte) (interface{}, error) {
	if !utf8.Valid(line) {
		return nil, ErrMalformed
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, ErrMalformed
	}

	switch env.Type {
	case TypeHandshake:
		var m Handshake
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, ErrMalformed
		}
		if m.HostName == "" || m.HostID == "" || m.Version == "" || len(m.Devices) == 0 {
			return nil, ErrMissingFields
		}
		return m, nil
	case TypeAuthResponse:
		var m AuthResponse
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, ErrMalformed
		}
		if m.ConsumerName == "" || m.ConsumerID == "" {
			return nil, ErrMissingFields
		}
		return m, nil
	case TypeEvent:
		var m EventBatch
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, ErrMalformed
		}
		if m.DeviceType == "" {
			return nil, ErrMissingFields
		}
		return m, nil
	case TypeDisconnect:
		var m Disconnect
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, ErrMalformed
		}
		if m.Reason == "" {
			return nil, ErrMissingFields
		}
		return m, nil
	default:
		return nil, ErrUnknownType
	}
}

// Framer reassembles a byte stream split arbitrarily across reads into
// complete '\n'-terminated lines, mirroring
// original_source/transnetwork.py's NetworkProtocol.unpack_messages.
// It is not safe for concurrent use.
type Framer struct {
	buf bytes.Buffer
}

// Push appends data to the internal buffer and returns every complete
// line it now contains (without the trailing '\n'); any trailing
// partial line is retained for the next Push.
func (f *Framer) Push(data []byte) [][]byte {
	f.buf.Write(data)

	var lines [][]byte
	for {
		b := f.buf.Bytes()
		idx := bytes.IndexByte(b, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, b[:idx])
		f.buf.Next(idx + 1)
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// Pending reports how many unterminated bytes are buffered.
func (f *Framer) Pending() int {
	return f.buf.Len()
}
