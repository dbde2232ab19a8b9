package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v1ATR() []byte {
	return []byte{0x3B, 0xFA, 0x13, 0x00, 0xFF, 0x81, 0x31, 0x80, 0x45, 0x00, 0x31, 0xC1, 0x73, 0xC0, 0x01, 0x00, 0x00, 0x90, 0x00, 0xB1}
}

func v2ATR() []byte {
	return []byte{0x3B, 0xFA, 0x13, 0x00, 0xFF, 0x81, 0x31, 0x80, 0x45, 0x00, 0x31, 0xC1, 0x73, 0xC0, 0x01, 0x00, 0x00, 0x90, 0x00, 0x0C}
}

func fullAID(serial [6]byte) []byte {
	aid := make([]byte, 16)
	copy(aid[0:6], []byte{0xD2, 0x76, 0x00, 0x01, 0x24, 0x01})
	copy(aid[8:14], serial[:])
	return aid
}

func baseMock(atr []byte) *mockTransport {
	m := newMockTransport()
	m.atr = atr
	m.dataObjects[0x004F] = fullAID([6]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05})
	m.dataObjects[0x5F52] = []byte{0x00, 0x73, 0x00, 0x00, 0x40, 0x00}
	return m
}

func TestMatchATR(t *testing.T) {
	typ, name, ok := MatchATR(v1ATR())
	require.True(t, ok)
	assert.Equal(t, CardTypeOpenPGPv1, typ)
	assert.NotEmpty(t, name)

	typ, _, ok = MatchATR(v2ATR())
	require.True(t, ok)
	assert.Equal(t, CardTypeOpenPGPv2, typ)

	_, _, ok = MatchATR([]byte{0x00, 0x01})
	assert.False(t, ok)
}

// spec.md Non-goals: cards with an unrecognized ATR are rejected outright,
// not silently treated as v1.
func TestInitRejectsUnrecognizedATR(t *testing.T) {
	m := baseMock([]byte{0x3B, 0x00})
	s := NewSession(m, nil)
	err := s.Init()
	assert.ErrorIs(t, err, ErrUnrecognizedCard)
	assert.Nil(t, s.mf)
}

// S1: registered RSA key sizes differ by card type.
func TestSupportedAlgorithmsS1(t *testing.T) {
	m := baseMock(v2ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	var bits []int
	for _, a := range s.SupportedAlgorithms() {
		bits = append(bits, a.KeyBits)
	}
	assert.Equal(t, []int{512, 768, 1024, 2048}, bits)

	m2 := baseMock(v1ATR())
	s2 := NewSession(m2, nil)
	require.NoError(t, s2.Init())
	defer s2.Finish()

	bits = nil
	for _, a := range s2.SupportedAlgorithms() {
		bits = append(bits, a.KeyBits)
	}
	assert.Equal(t, []int{512, 768, 1024}, bits)
}

// S6: historical-byte extended-length capability parsing.
func TestExtendedLengthSupportedS6(t *testing.T) {
	assert.True(t, extendedLengthSupported([]byte{0x00, 0x73, 0x00, 0x00, 0x40, 0x00}))
	assert.False(t, extendedLengthSupported([]byte{0x00, 0x73, 0x00, 0x00, 0x00, 0x00}))
	assert.False(t, extendedLengthSupported([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}))
}

func buildDiscretionaryTree() (sixE, seventyThree, c4Value []byte) {
	c4Value = []byte{0x00, 0x03, 0x00, 0x03, 0x03, 0x08, 0x08}
	c4 := tlvByte(0xC4, c4Value)
	seventyThree = tlvByte(0x73, c4)
	sixE = tlvByte(0x73, c4) // 006E's cached bytes consist of its one child, DO 0073
	return sixE, seventyThree, c4Value
}

// S2: walking a multi-level path fetches and TLV-parses each intermediate DO
// exactly once, even when the path is re-traversed.
func TestSelectFileS2(t *testing.T) {
	m := baseMock(v1ATR())
	sixE, _, c4Value := buildDiscretionaryTree()
	m.dataObjects[0x006E] = sixE

	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	path, err := ParsePath("3F00/006E/0073/00C4")
	require.NoError(t, err)

	fd, err := s.SelectFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x00C4), fd.ID)
	assert.Equal(t, KindEF, fd.Type)

	buf := make([]byte, 16)
	n, err := s.ReadBinary(0, buf)
	require.NoError(t, err)
	assert.Equal(t, c4Value, buf[:n])

	callsAfterFirst := m.getDataCalls

	fd2, err := s.SelectFile(path)
	require.NoError(t, err)
	assert.Equal(t, fd.ID, fd2.ID)
	assert.Equal(t, fd.Type, fd2.Type)
	assert.Equal(t, fd.Path, fd2.Path)

	assert.Equal(t, callsAfterFirst, m.getDataCalls, "re-traversal must not re-issue GET DATA")
}

func TestSelectFileNotFound(t *testing.T) {
	m := baseMock(v1ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	path, err := ParsePath("9999")
	require.NoError(t, err)
	_, err = s.SelectFile(path)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestListFilesRoot(t *testing.T) {
	m := baseMock(v1ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	_, err := s.SelectFile(nil)
	require.NoError(t, err)
	buf := make([]byte, 2*len(registry))
	n, err := s.ListFiles(buf)
	require.NoError(t, err)
	assert.Equal(t, 2*len(registry), n)
	assert.Equal(t, byte(registry[0].tag>>8), buf[0])
	assert.Equal(t, byte(registry[0].tag), buf[1])
}

func TestReadBinaryBounds(t *testing.T) {
	m := baseMock(v1ATR())
	m.dataObjects[0x5F50] = []byte("https://example.com")
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	path, _ := ParsePath("5F50")
	_, err := s.SelectFile(path)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := s.ReadBinary(len("https://example.com"), buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.ReadBinary(len("https://example.com")+1, buf)
	assert.ErrorIs(t, err, ErrIncorrectParameters)
}

func TestWriteBinaryAndPutDataRefused(t *testing.T) {
	m := baseMock(v1ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	_, err := s.WriteBinary(0, []byte("x"))
	assert.ErrorIs(t, err, ErrNotSupported)

	err = s.PutData(0x5F50, []byte("x"))
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestCardCtl(t *testing.T) {
	m := baseMock(v1ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	serial, err := s.CardCtl(CtlGetSerialNumber)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}, serial)

	_, err = s.CardCtl(ControlCode(99))
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestPinCmdSetsCHVBit(t *testing.T) {
	m := baseMock(v1ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	_, err := s.PinCmd(PinKindCHV, 0x01, []byte("123456"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), m.pinRef)
}
