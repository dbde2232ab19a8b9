package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSecurityEnvValidation(t *testing.T) {
	cases := []struct {
		name string
		env  SecurityEnv
		ok   bool
	}{
		{"sign+sigkey ok", SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefSignature}}, true},
		{"sign+authkey ok", SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefAuthentication}}, true},
		{"decipher+deckey ok", SecurityEnv{Operation: OpDecipher, KeyRef: []byte{KeyRefDecryption}}, true},
		{"sign+deckey rejected (S3)", SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefDecryption}}, false},
		{"decipher+sigkey rejected", SecurityEnv{Operation: OpDecipher, KeyRef: []byte{KeyRefSignature}}, false},
		{"bad algorithm", SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefSignature}, Algorithm: Algorithm(99)}, false},
		{"missing key ref", SecurityEnv{Operation: OpSign}, false},
		{"multi-byte key ref", SecurityEnv{Operation: OpSign, KeyRef: []byte{0x00, 0x01}}, false},
		{"file ref present", SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefSignature}, FileRef: []byte{0x01}}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := baseMock(v1ATR())
			s := NewSession(m, nil)
			require.NoError(t, s.Init())
			defer s.Finish()

			before := m.getDataCalls
			err := s.SetSecurityEnv(c.env)
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidArguments)
				// S3: validation failure must not touch card state.
				assert.Equal(t, before, m.getDataCalls)
			}
		})
	}
}

func TestComputeSignatureRouting(t *testing.T) {
	m := baseMock(v1ATR())
	m.signResp = []byte{0xAA, 0xBB}
	m.authResp = []byte{0xCC, 0xDD}
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	require.NoError(t, s.SetSecurityEnv(SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefSignature}}))
	resp, err := s.ComputeSignature([]byte("digest"))
	require.NoError(t, err)
	assert.Equal(t, m.signResp, resp)

	require.NoError(t, s.SetSecurityEnv(SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefAuthentication}}))
	resp, err = s.ComputeSignature([]byte("challenge"))
	require.NoError(t, err)
	assert.Equal(t, m.authResp, resp)
}

func TestComputeSignatureWrongOperation(t *testing.T) {
	m := baseMock(v1ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	require.NoError(t, s.SetSecurityEnv(SecurityEnv{Operation: OpDecipher, KeyRef: []byte{KeyRefDecryption}}))
	_, err := s.ComputeSignature([]byte("x"))
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

// S4: decipher's data field is exactly 0x00 followed by the ciphertext.
func TestDecipherPaddingIndicatorS4(t *testing.T) {
	m := baseMock(v1ATR())
	m.decipherResp = []byte("plaintext")
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	require.NoError(t, s.SetSecurityEnv(SecurityEnv{Operation: OpDecipher, KeyRef: []byte{KeyRefDecryption}}))
	resp, err := s.Decipher([]byte{0x61, 0x62, 0x63})
	require.NoError(t, err)
	assert.Equal(t, m.decipherResp, resp)
	assert.Equal(t, []byte{0x00, 0x61, 0x62, 0x63}, m.lastAPDU.Data)
	assert.True(t, m.lastAPDU.Pib)
}

func TestDecipherRejectsWrongKeys(t *testing.T) {
	m := baseMock(v1ATR())
	s := NewSession(m, nil)
	require.NoError(t, s.Init())
	defer s.Finish()

	require.NoError(t, s.SetSecurityEnv(SecurityEnv{Operation: OpSign, KeyRef: []byte{KeyRefSignature}}))
	_, err := s.Decipher([]byte("x"))
	assert.ErrorIs(t, err, ErrInvalidArguments)
}
