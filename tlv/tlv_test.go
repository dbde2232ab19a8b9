package tlv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeShortForm(t *testing.T) {
	// tag 0x5F50 (two-byte tag), length 3, value "abc"
	buf := []byte{0x5F, 0x50, 0x03, 'a', 'b', 'c', 0xAA}
	obj, rest, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5F50), obj.Tag)
	assert.False(t, obj.Constructed)
	assert.Equal(t, []byte("abc"), obj.Value)
	assert.Equal(t, []byte{0xAA}, rest)
}

func TestDecodeSingleByteTag(t *testing.T) {
	buf := []byte{0x93, 0x01, 0x07}
	obj, rest, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x93), obj.Tag)
	assert.Equal(t, []byte{0x07}, obj.Value)
	assert.Empty(t, rest)
}

func TestDecodeConstructed(t *testing.T) {
	buf := []byte{0x7F, 0x49, 0x02, 0x81, 0x00}
	obj, _, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, obj.Constructed)
	assert.Equal(t, uint16(0x7F49), obj.Tag)
}

func TestDecodeLongFormLength(t *testing.T) {
	value := make([]byte, 0x0130)
	for i := range value {
		value[i] = byte(i)
	}
	buf := append([]byte{0x00, 0x82, 0x01, 0x30}, value...)
	obj, rest, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x00), obj.Tag)
	assert.Equal(t, value, obj.Value)
	assert.Empty(t, rest)
}

func TestDecodeTruncated(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x5F},
		{0x5F, 0x1F},
		{0x00, 0x05, 0x01, 0x02},
		{0x00, 0x82, 0x01},
	}
	for i, buf := range cases {
		_, _, err := Decode(buf)
		assert.ErrorIsf(t, err, ErrTruncated, "case %d", i)
	}
}

func TestDecodeAll(t *testing.T) {
	buf := []byte{
		0x5B, 0x02, 'a', 'b', // Name
		0x5F, 0x2D, 0x02, 'e', 'n', // Language preferences
	}
	objs, err := DecodeAll(buf)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, uint16(0x5B), objs[0].Tag)
	assert.Equal(t, uint16(0x5F2D), objs[1].Tag)
}

func TestFindNested(t *testing.T) {
	inner := []byte{0x81, 0x02, 0x01, 0x00} // modulus
	outer := append([]byte{0x7F, 0x49, byte(len(inner))}, inner...)
	obj, ok := Find(outer, 0x0081)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x00}, obj.Value)

	_, ok = Find(outer, 0x0099)
	assert.False(t, ok)
}
