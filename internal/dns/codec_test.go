package dns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeName(t *testing.T) {
	b, err := EncodeName("google.com")
	require.NoError(t, err)
	exp := []byte{6, 'g', 'o', 'o', 'g', 'l', 'e', 3, 'c', 'o', 'm', 0}
	assert.Equal(t, exp, b)
}

func TestEncodeName_TrailingDotIsTerminator(t *testing.T) {
	withDot, err := EncodeName("pdos.csail.mit.edu.")
	require.NoError(t, err)
	withoutDot, err := EncodeName("pdos.csail.mit.edu")
	require.NoError(t, err)
	assert.Equal(t, withoutDot, withDot)
	assert.Equal(t, byte(0), withDot[len(withDot)-1])
	assert.NotEqual(t, byte(0), withDot[len(withDot)-2], "terminator must not be emitted twice")
}

func TestEncodeName_Root(t *testing.T) {
	for _, name := range []string{"", "."} {
		b, err := EncodeName(name)
		require.NoError(t, err)
		assert.Equal(t, []byte{0}, b)
	}
}

func TestEncodeName_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"label of 64 bytes", strings.Repeat("a", 64) + ".com", ErrLabelTooLong},
		{"empty interior label", "a..b", ErrEmptyLabel},
		{"leading dot", ".example.com", ErrEmptyLabel},
		{"two trailing dots", "example.com..", ErrEmptyLabel},
		{"name over 255 bytes", strings.TrimSuffix(strings.Repeat(strings.Repeat("x", 63)+".", 5), "."), ErrNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeName(tt.in)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrDNSError)
		})
	}
}

func TestEncodeName_LabelOf63BytesIsAccepted(t *testing.T) {
	label := strings.Repeat("a", 63)
	b, err := EncodeName(label + ".com")
	require.NoError(t, err)
	assert.Equal(t, byte(63), b[0])
}

func TestAppendName_LeavesDstOnError(t *testing.T) {
	dst := []byte{0xAA, 0xBB}
	out, err := AppendName(dst, "ok."+strings.Repeat("z", 70))
	require.Error(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, out)
}

func TestDecodeName_Uncompressed(t *testing.T) {
	msg := []byte{3, 'w', 'w', 'w', 7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0}
	n, consumed, err := DecodeName(msg, 0, len(msg))
	require.NoError(t, err)
	assert.Equal(t, "www.example.com.", n)
	assert.Equal(t, len(msg), consumed)
}

func TestDecodeName_Root(t *testing.T) {
	n, consumed, err := DecodeName([]byte{0}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, ".", n)
	assert.Equal(t, 1, consumed)
}

func TestDecodeName_Compressed(t *testing.T) {
	// "example.com" at offset 0, then "www" + pointer to offset 0 at offset 13.
	msg := []byte{
		7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0,
		3, 'w', 'w', 'w', 0xC0, 0x00,
	}
	n, consumed, err := DecodeName(msg, 13, len(msg))
	require.NoError(t, err)
	assert.Equal(t, "www.example.com.", n)
	assert.Equal(t, 6, consumed, "label plus the two pointer bytes")
}

func TestDecodeName_PointerOnly(t *testing.T) {
	msg := []byte{3, 'c', 'o', 'm', 0, 0xC0, 0x00}
	n, consumed, err := DecodeName(msg, 5, len(msg))
	require.NoError(t, err)
	assert.Equal(t, "com.", n)
	assert.Equal(t, 2, consumed)
}

func TestDecodeName_PointerChain(t *testing.T) {
	// com at 0, example->0 at 5, www->5 at 15.
	msg := []byte{
		3, 'c', 'o', 'm', 0,
		7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0xC0, 0x00,
		3, 'w', 'w', 'w', 0xC0, 0x05,
	}
	n, consumed, err := DecodeName(msg, 15, len(msg))
	require.NoError(t, err)
	assert.Equal(t, "www.example.com.", n)
	assert.Equal(t, 6, consumed)
}

func TestDecodeName_LengthAbove63IsPointer(t *testing.T) {
	// 0x40 has the 01 high-bit pattern; it is still read as a pointer.
	msg := []byte{3, 'o', 'r', 'g', 0, 0x40, 0x00}
	n, consumed, err := DecodeName(msg, 5, len(msg))
	require.NoError(t, err)
	assert.Equal(t, "org.", n)
	assert.Equal(t, 2, consumed)
}

func TestDecodeName_Errors(t *testing.T) {
	tests := []struct {
		name    string
		msg     []byte
		off     int
		bound   int
		wantErr error
	}{
		{"empty message", []byte{}, 0, 0, ErrTruncated},
		{"offset past bound", []byte{0}, 1, 1, ErrTruncated},
		{"label past bound", []byte{5, 'a', 'b'}, 0, 3, ErrTruncated},
		{"missing terminator", []byte{1, 'a'}, 0, 2, ErrTruncated},
		{"bound shorter than message", []byte{1, 'a', 0}, 0, 2, ErrTruncated},
		{"half pointer", []byte{0xC0}, 0, 1, ErrTruncated},
		{"pointer beyond bound", []byte{0xC0, 0x10}, 0, 2, ErrBadPointer},
		{"self pointer", []byte{0xC0, 0x00}, 0, 2, ErrPointerLoop},
		{"two-node cycle", []byte{0xC0, 0x02, 0xC0, 0x00}, 0, 4, ErrPointerLoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeName(tt.msg, tt.off, tt.bound)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeName_BoundLargerThanMessageIsClamped(t *testing.T) {
	msg := []byte{1, 'a'}
	_, _, err := DecodeName(msg, 0, 100)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestNameRoundTrip(t *testing.T) {
	names := []string{
		"pdos.csail.mit.edu.",
		"a.",
		"example.com",
		strings.Repeat("b", 63) + ".example.",
		"under_score.test.",
		"MiXeD.CaSe.",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			wire, err := EncodeName(name)
			require.NoError(t, err)
			decoded, consumed, err := DecodeName(wire, 0, len(wire))
			require.NoError(t, err)
			assert.Equal(t, len(wire), consumed)
			assert.Equal(t, strings.TrimSuffix(name, ".")+".", decoded)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "example.com.", NormalizeName("Example.COM"))
	assert.Equal(t, "example.com.", NormalizeName("example.com."))
}
