// -*- Mode: Go; indent-tabs-mode: t -*-

package wire_test

import (
	"reflect"
	"testing"

	"github.com/icarito/transwacom/internal/wire"
)

func sampleMessages() []interface{} {
	return []interface{}{
		wire.NewHandshake("alpha", "a1b2c3d4e5f60718", []wire.DeviceInfo{
			{Type: "wacom", Path: "/dev/input/event19", Name: "Wacom Intuos", Capabilities: []string{"pressure", "tilt"}},
		}, "1.0"),
		wire.NewEventBatch("wacom", []wire.InputEvent{
			{Code: "ABS_X", Value: 1024, Timestamp: 1700000000.001},
			{Code: "ABS_PRESSURE", Value: 312, Timestamp: 1700000000.002},
			{Code: "SYN_REPORT", Value: 0, Timestamp: 1700000000.003},
		}, 1700000000.003),
		wire.NewDisconnect("user_request", 1700000001.0),
	}
}

func encodeAll(t *testing.T, msgs []interface{}) []byte {
	t.Helper()
	var out []byte
	for _, m := range msgs {
		b, err := wire.Encode(m)
		if err != nil {
			t.Fatalf("encode %T: %v", m, err)
		}
		out = append(out, b...)
	}
	return out
}

func decodeAll(t *testing.T, framer *wire.Framer, chunks [][]byte) []interface{} {
	t.Helper()
	var decoded []interface{}
	for _, chunk := range chunks {
		for _, line := range framer.Push(chunk) {
			msg, err := wire.Decode(line)
			if err != nil {
				t.Fatalf("decode line %q: %v", line, err)
			}
			decoded = append(decoded, msg)
		}
	}
	return decoded
}

func chunksOfSize(data []byte, size int) [][]byte {
	var chunks [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks
}

// TestFramingRoundTrip is scenario S1: arbitrary byte-boundary
// chunking of the encoded stream must decode to the identical message
// sequence, for chunk sizes of 1, 7 and "all but the last byte".
func TestFramingRoundTrip(t *testing.T) {
	msgs := sampleMessages()
	encoded := encodeAll(t, msgs)

	chunkings := map[string][][]byte{
		"size-1": chunksOfSize(encoded, 1),
		"size-7": chunksOfSize(encoded, 7),
		"all-but-last-byte": {encoded[:len(encoded)-1], encoded[len(encoded)-1:]},
		"whole":             {encoded},
	}

	for name, chunks := range chunkings {
		t.Run(name, func(t *testing.T) {
			f := &wire.Framer{}
			decoded := decodeAll(t, f, chunks)
			if len(decoded) != len(msgs) {
				t.Fatalf("got %d messages, want %d", len(decoded), len(msgs))
			}
			for i := range msgs {
				if !reflect.DeepEqual(decoded[i], msgs[i]) {
					t.Errorf("message %d: got %#v, want %#v", i, decoded[i], msgs[i])
				}
			}
			if f.Pending() != 0 {
				t.Errorf("framer left %d pending bytes", f.Pending())
			}
		})
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := wire.Decode([]byte(`{"type":"teleport"}`))
	if err != wire.ErrUnknownType {
		t.Fatalf("got %v, want ErrUnknownType", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := wire.Decode([]byte(`{"type":"handshake"`))
	if err != wire.ErrMalformed {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeRejectsNonUTF8(t *testing.T) {
	_, err := wire.Decode([]byte{0xff, 0xfe, 0x00})
	if err != wire.ErrMalformed {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeRejectsMissingHandshakeFields(t *testing.T) {
	_, err := wire.Decode([]byte(`{"type":"handshake","host_name":"alpha"}`))
	if err != wire.ErrMissingFields {
		t.Fatalf("got %v, want ErrMissingFields", err)
	}
}

func TestDecodeRejectsMissingAuthResponseFields(t *testing.T) {
	_, err := wire.Decode([]byte(`{"type":"auth_response","accepted":true}`))
	if err != wire.ErrMissingFields {
		t.Fatalf("got %v, want ErrMissingFields", err)
	}
}

func TestFramerRetainsPartialLine(t *testing.T) {
	f := &wire.Framer{}
	lines := f.Push([]byte(`{"type":"disconnect","reason":"x"`))
	if len(lines) != 0 {
		t.Fatalf("expected no complete lines yet, got %d", len(lines))
	}
	if f.Pending() == 0 {
		t.Fatal("expected buffered partial line")
	}
	lines = f.Push([]byte(",\"timestamp\":1.0}\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one complete line, got %d", len(lines))
	}
}

func TestEncodeDecodeEventBatch(t *testing.T) {
	original := wire.NewEventBatch("joystick", []wire.InputEvent{{Code: "BTN_A", Value: 1, Timestamp: 1.0}}, 1.0)
	encoded, err := wire.Encode(original)
	if err != nil {
		t.Fatal(err)
	}
	if encoded[len(encoded)-1] != '\n' {
		t.Fatal("encoded message must end with newline")
	}
	decoded, err := wire.Decode(encoded[:len(encoded)-1])
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("got %#v, want %#v", decoded, original)
	}
}
