package card

// Algorithm identifies the cryptographic algorithm family for a security
// environment. RSA is the only value this driver accepts (spec.md §4.6).
type Algorithm int

const (
	AlgorithmUnspecified Algorithm = iota
	AlgorithmRSA
)

// Operation is the cryptographic operation a security environment is set up
// for.
type Operation int

const (
	OpSign Operation = iota
	OpDecipher
)

// Key reference values, per spec.md §4.6.
const (
	KeyRefSignature     byte = 0x00
	KeyRefDecryption    byte = 0x01
	KeyRefAuthentication byte = 0x02
)

// SecurityEnv describes a requested security environment. FileRef must be
// nil; this driver never selects a security environment by EF reference.
type SecurityEnv struct {
	Algorithm Algorithm
	Operation Operation
	KeyRef    []byte
	FileRef   []byte
}

// SetSecurityEnv validates env against spec.md §4.6 and, if valid, stores it
// as the session's active environment for the next ComputeSignature or
// Decipher call.
func (s *Session) SetSecurityEnv(env SecurityEnv) error {
	if env.Algorithm != AlgorithmUnspecified && env.Algorithm != AlgorithmRSA {
		return ErrInvalidArguments
	}
	if len(env.KeyRef) != 1 {
		return ErrInvalidArguments
	}
	if env.FileRef != nil {
		return ErrInvalidArguments
	}

	ref := env.KeyRef[0]
	switch env.Operation {
	case OpSign:
		if ref != KeyRefSignature && ref != KeyRefAuthentication {
			return ErrInvalidArguments
		}
	case OpDecipher:
		if ref != KeyRefDecryption {
			return ErrInvalidArguments
		}
	default:
		return ErrInvalidArguments
	}

	s.securityEnv = &env
	return nil
}

// ComputeSignature implements spec.md §4.6: routes to PSO Compute Signature
// or INTERNAL AUTHENTICATE depending on the active environment's key
// reference.
func (s *Session) ComputeSignature(data []byte) ([]byte, error) {
	env := s.securityEnv
	if env == nil || env.Operation != OpSign {
		return nil, ErrInvalidArguments
	}
	switch env.KeyRef[0] {
	case KeyRefSignature:
		return psoComputeSignature(s, data)
	case KeyRefAuthentication:
		return internalAuthenticate(s, data)
	case KeyRefDecryption:
		return nil, ErrNotSupported
	default:
		return nil, ErrInvalidArguments
	}
}

// Decipher implements spec.md §4.6: PSO Decipher with the 0x00 padding
// indicator byte prepended, for the decryption key only.
func (s *Session) Decipher(ciphertext []byte) ([]byte, error) {
	env := s.securityEnv
	if env == nil || env.Operation != OpDecipher {
		return nil, ErrInvalidArguments
	}
	switch env.KeyRef[0] {
	case KeyRefDecryption:
		return psoDecipher(s, ciphertext)
	case KeyRefSignature, KeyRefAuthentication:
		return nil, ErrInvalidArguments
	default:
		return nil, ErrInvalidArguments
	}
}
