// Package message converts raw step text into typed wire messages.
//
// Every Kind is a table entry carrying its own validation and build rules,
// so call sites never switch on the kind themselves.
package message

import "fmt"

// Frame is the wire frame type a message is written as.
type Frame int

const (
	// FrameText is a UTF-8 text frame.
	FrameText Frame = iota + 1
	// FrameBinary is an opaque binary frame.
	FrameBinary
)

func (f Frame) String() string {
	switch f {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return fmt.Sprintf("frame(%d)", int(f))
	}
}

// Message is an immutable typed wire message.
type Message struct {
	frame   Frame
	payload []byte
}

// NewText returns a text message.
func NewText(s string) Message {
	return Message{frame: FrameText, payload: []byte(s)}
}

// NewBinary returns a binary message holding a copy of b.
func NewBinary(b []byte) Message {
	payload := make([]byte, len(b))
	copy(payload, b)
	return Message{frame: FrameBinary, payload: payload}
}

// Frame returns the frame type.
func (m Message) Frame() Frame { return m.frame }

// Payload returns a copy of the payload bytes.
func (m Message) Payload() []byte {
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out
}

// Len returns the payload size in bytes.
func (m Message) Len() int { return len(m.payload) }

// IsZero reports whether m was never built.
func (m Message) IsZero() bool { return m.frame == 0 }
