package message

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dirProject reads references relative to a directory.
type dirProject string

func (d dirProject) ReadFile(_ context.Context, ref string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(d), ref))
}

func TestValidate_EmptyContent(t *testing.T) {
	for _, k := range Kinds() {
		t.Run(string(k), func(t *testing.T) {
			defects := Validate(k, "")
			switch k {
			case KindText:
				assert.Empty(t, defects)
			case KindBinaryFile:
				assert.Equal(t, []string{DefectFileNotSpecified}, defects)
			default:
				assert.Equal(t, []string{DefectContentNotSpecified}, defects)
			}
		})
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	assert.Equal(t, []string{DefectFormatNotSpecified}, Validate("", "hello"))
	assert.Equal(t,
		[]string{DefectFormatNotSpecified, DefectContentNotSpecified},
		Validate("Yaml", ""),
	)
}

func TestValidate_Numeric(t *testing.T) {
	tests := []struct {
		kind  Kind
		raw   string
		valid bool
	}{
		{KindInteger, "42", true},
		{KindInteger, "-2147483648", true},
		{KindInteger, "2147483648", false},
		{KindInteger, "1.5", false},
		{KindInteger, "abc", false},
		{KindLong, "9223372036854775807", true},
		{KindLong, "9223372036854775808", false},
		{KindLong, "12abc", false},
		{KindFloat, "1.5", true},
		{KindFloat, "1e39", false},
		{KindFloat, "x", false},
		{KindDouble, "-3.25e10", true},
		{KindDouble, " 2.5 ", true},
		{KindDouble, "two", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.raw, func(t *testing.T) {
			defects := Validate(tt.kind, tt.raw)
			if tt.valid {
				assert.Empty(t, defects)
			} else {
				require.Len(t, defects, 1)
				assert.Contains(t, defects[0], "is not a valid")
			}
			assert.Equal(t, tt.valid, Accepts(tt.kind, tt.raw))
		})
	}
}

func TestValidate_BinaryEncodings(t *testing.T) {
	assert.Empty(t, Validate(KindBinaryBase64, "aGVsbG8="))
	assert.NotEmpty(t, Validate(KindBinaryBase64, "not base64!"))
	assert.Empty(t, Validate(KindBinaryHex, "de ad be ef"))
	assert.NotEmpty(t, Validate(KindBinaryHex, "xyz"))
}

func TestAccepts_NonNumericKindsAcceptAnything(t *testing.T) {
	for _, k := range []Kind{KindText, KindJSON, KindXML, KindBinaryFile, KindBinaryHex} {
		assert.True(t, Accepts(k, "not a number"), k)
	}
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, "0", Coerce(KindInteger, "hello"))
	assert.Equal(t, "0", Coerce(KindLong, ""))
	assert.Equal(t, "0", Coerce(KindFloat, "abc"))
	assert.Equal(t, "0", Coerce(KindDouble, "abc"))
	assert.Equal(t, "17", Coerce(KindInteger, "17"))
	assert.Equal(t, "hello", Coerce(KindJSON, "hello"))
	assert.Equal(t, "", Coerce(KindText, ""))
}

func TestBuild_TextKinds(t *testing.T) {
	for _, k := range []Kind{KindText, KindJSON, KindXML} {
		msg, err := Build(t.Context(), k, `{"a":1}`, nil)
		require.NoError(t, err)
		assert.Equal(t, FrameText, msg.Frame())
		assert.Equal(t, []byte(`{"a":1}`), msg.Payload())
	}
}

func TestBuild_Numeric(t *testing.T) {
	msg, err := Build(t.Context(), KindInteger, "258", nil)
	require.NoError(t, err)
	assert.Equal(t, FrameBinary, msg.Frame())
	assert.Equal(t, []byte{0, 0, 1, 2}, msg.Payload())

	msg, err = Build(t.Context(), KindLong, "-1", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, msg.Payload())

	msg, err = Build(t.Context(), KindFloat, "1.5", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, msg.Len())
	bits := uint32(msg.Payload()[0])<<24 | uint32(msg.Payload()[1])<<16 | uint32(msg.Payload()[2])<<8 | uint32(msg.Payload()[3])
	assert.Equal(t, float32(1.5), math.Float32frombits(bits))

	msg, err = Build(t.Context(), KindDouble, "2", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0, 0, 0, 0, 0, 0, 0}, msg.Payload())
}

func TestBuild_BinaryEncodings(t *testing.T) {
	msg, err := Build(t.Context(), KindBinaryBase64, "aGVsbG8=", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg.Payload())

	msg, err = Build(t.Context(), KindBinaryHex, "68 65 6c 6c 6f", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg.Payload())
}

func TestBuild_BinaryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.bin"), []byte{1, 2, 3}, 0o644))

	msg, err := Build(t.Context(), KindBinaryFile, "payload.bin", dirProject(dir))
	require.NoError(t, err)
	assert.Equal(t, FrameBinary, msg.Frame())
	assert.Equal(t, []byte{1, 2, 3}, msg.Payload())
}

func TestBuild_BinaryFileUnreadable(t *testing.T) {
	_, err := Build(t.Context(), KindBinaryFile, "missing.bin", dirProject(t.TempDir()))
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
	assert.Contains(t, err.Error(), `unable to read the file "missing.bin"`)

	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.True(t, errors.Is(convErr, os.ErrNotExist))
}

func TestBuild_BinaryFileWithoutProject(t *testing.T) {
	_, err := Build(t.Context(), KindBinaryFile, "payload.bin", nil)
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
}

func TestBuild_NeverFailsAfterValidate(t *testing.T) {
	inputs := map[Kind]string{
		KindText:         "",
		KindJSON:         "{}",
		KindXML:          "<a/>",
		KindBinaryBase64: "AAEC",
		KindBinaryHex:    "000102",
		KindInteger:      "7",
		KindLong:         "7",
		KindFloat:        "7.5",
		KindDouble:       "7.5",
	}
	for k, raw := range inputs {
		require.Empty(t, Validate(k, raw), k)
		_, err := Build(t.Context(), k, raw, nil)
		assert.NoError(t, err, k)
	}
}

func TestMessage_PayloadIsCopied(t *testing.T) {
	src := []byte{1, 2}
	msg := NewBinary(src)
	src[0] = 9
	assert.Equal(t, []byte{1, 2}, msg.Payload())

	p := msg.Payload()
	p[1] = 9
	assert.Equal(t, []byte{1, 2}, msg.Payload())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("IntegerValue")
	assert.True(t, ok)
	assert.Equal(t, KindInteger, k)
	assert.True(t, k.Numeric())

	_, ok = ParseKind("integervalue")
	assert.False(t, ok)
	assert.Equal(t, KindJSON, DefaultKind)
	assert.True(t, KindText.AllowsEmpty())
	assert.False(t, KindJSON.AllowsEmpty())
}
