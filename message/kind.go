package message

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the declared format of a published message. Its string value is
// the persisted name.
type Kind string

// Supported kinds.
const (
	KindText         Kind = "Text"
	KindJSON         Kind = "Json"
	KindXML          Kind = "Xml"
	KindBinaryBase64 Kind = "BinaryBase64"
	KindBinaryHex    Kind = "BinaryHex"
	KindBinaryFile   Kind = "BinaryFile"
	KindInteger      Kind = "IntegerValue"
	KindLong         Kind = "LongValue"
	KindFloat        Kind = "FloatValue"
	KindDouble       Kind = "DoubleValue"
)

// DefaultKind is the kind a new step starts with.
const DefaultKind = KindJSON

// Project resolves file references relative to the project that owns a step.
type Project interface {
	ReadFile(ctx context.Context, ref string) ([]byte, error)
}

// kindRules holds the per-kind rules.
type kindRules struct {
	allowEmpty bool
	numeric    bool
	frame      Frame
	// check returns a defect for non-empty raw text, or "".
	check func(raw string) string
	build func(ctx context.Context, raw string, project Project) (Message, error)
}

// order is the listing order of Kinds().
var order = []Kind{
	KindText, KindJSON, KindXML,
	KindBinaryBase64, KindBinaryHex, KindBinaryFile,
	KindInteger, KindLong, KindFloat, KindDouble,
}

var kinds = map[Kind]kindRules{
	KindText: {allowEmpty: true, frame: FrameText, build: buildText},
	KindJSON: {frame: FrameText, build: buildText},
	KindXML:  {frame: FrameText, build: buildText},
	KindBinaryBase64: {
		frame: FrameBinary,
		check: func(raw string) string {
			if _, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw)); err != nil {
				return "The message content is not valid base64 data."
			}
			return ""
		},
		build: func(_ context.Context, raw string, _ Project) (Message, error) {
			b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
			if err != nil {
				return Message{}, &ConversionError{Kind: KindBinaryBase64, Msg: "unable to decode base64 content", Err: err}
			}
			return NewBinary(b), nil
		},
	},
	KindBinaryHex: {
		frame: FrameBinary,
		check: func(raw string) string {
			if _, err := decodeHex(raw); err != nil {
				return "The message content is not valid hexadecimal data."
			}
			return ""
		},
		build: func(_ context.Context, raw string, _ Project) (Message, error) {
			b, err := decodeHex(raw)
			if err != nil {
				return Message{}, &ConversionError{Kind: KindBinaryHex, Msg: "unable to decode hexadecimal content", Err: err}
			}
			return NewBinary(b), nil
		},
	},
	KindBinaryFile: {frame: FrameBinary, build: buildFile},
	KindInteger: {
		numeric: true,
		frame:   FrameBinary,
		check:   numericCheck(parseInt32, "integer"),
		build: func(_ context.Context, raw string, _ Project) (Message, error) {
			v, err := parseInt32(raw)
			if err != nil {
				return Message{}, numericErr(KindInteger, raw, err)
			}
			return NewBinary(binary.BigEndian.AppendUint32(nil, uint32(v))), nil
		},
	},
	KindLong: {
		numeric: true,
		frame:   FrameBinary,
		check:   numericCheck(parseInt64, "long"),
		build: func(_ context.Context, raw string, _ Project) (Message, error) {
			v, err := parseInt64(raw)
			if err != nil {
				return Message{}, numericErr(KindLong, raw, err)
			}
			return NewBinary(binary.BigEndian.AppendUint64(nil, uint64(v))), nil
		},
	},
	KindFloat: {
		numeric: true,
		frame:   FrameBinary,
		check:   numericCheck(parseFloat32, "float"),
		build: func(_ context.Context, raw string, _ Project) (Message, error) {
			v, err := parseFloat32(raw)
			if err != nil {
				return Message{}, numericErr(KindFloat, raw, err)
			}
			return NewBinary(binary.BigEndian.AppendUint32(nil, math.Float32bits(v))), nil
		},
	},
	KindDouble: {
		numeric: true,
		frame:   FrameBinary,
		check:   numericCheck(parseFloat64, "double"),
		build: func(_ context.Context, raw string, _ Project) (Message, error) {
			v, err := parseFloat64(raw)
			if err != nil {
				return Message{}, numericErr(KindDouble, raw, err)
			}
			return NewBinary(binary.BigEndian.AppendUint64(nil, math.Float64bits(v))), nil
		},
	},
}

// Kinds returns all supported kinds in listing order.
func Kinds() []Kind {
	out := make([]Kind, len(order))
	copy(out, order)
	return out
}

// ParseKind parses a persisted kind name. Matching is exact.
func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	_, ok := kinds[k]
	return k, ok
}

// Known reports whether k is a supported kind.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// AllowsEmpty reports whether empty raw text is a valid message for k.
func (k Kind) AllowsEmpty() bool {
	return kinds[k].allowEmpty
}

// Numeric reports whether k is a numeric scalar kind.
func (k Kind) Numeric() bool {
	return kinds[k].numeric
}

// Frame returns the wire frame type messages of kind k are written as.
func (k Kind) Frame() Frame {
	return kinds[k].frame
}

func (k Kind) String() string { return string(k) }

func buildText(_ context.Context, raw string, _ Project) (Message, error) {
	return NewText(raw), nil
}

func buildFile(ctx context.Context, raw string, project Project) (Message, error) {
	if project == nil {
		return Message{}, &ConversionError{
			Kind: KindBinaryFile,
			Msg:  fmt.Sprintf("unable to resolve the file %q: no owning project", raw),
		}
	}
	data, err := project.ReadFile(ctx, raw)
	if err != nil {
		return Message{}, &ConversionError{
			Kind: KindBinaryFile,
			Msg:  fmt.Sprintf("unable to read the file %q", raw),
			Err:  err,
		}
	}
	return NewBinary(data), nil
}

func decodeHex(raw string) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(raw), ""))
}

func parseInt32(raw string) (int32, error) {
	v, err := strconv.ParseInt(raw, 10, 32)
	return int32(v), err
}

func parseInt64(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func parseFloat32(raw string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
	return float32(v), err
}

func parseFloat64(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

func numericCheck[T any](parse func(string) (T, error), typeName string) func(string) string {
	return func(raw string) string {
		if _, err := parse(raw); err != nil {
			return fmt.Sprintf("The message content is not a valid %s value.", typeName)
		}
		return ""
	}
}

func numericErr(k Kind, raw string, err error) error {
	return &ConversionError{Kind: k, Msg: fmt.Sprintf("%q is not a valid %s", raw, k), Err: err}
}
