package card

// APDU command bytes for the four operations this driver issues. See
// spec.md §4.3.
const (
	insGetData        = 0xCA
	insGenerateAsymm  = 0x47
	insPSO            = 0x2A
	insInternalAuth   = 0x88

	p1GenAsymmRead = 0x81
	p1PSOSign      = 0x9E
	p2PSOSign      = 0x9A
	p1PSODecipher  = 0x80
	p2PSODecipher  = 0x86
)

const (
	bufLenShort    = 256
	bufLenExtended = 2048
)

func (s *Session) bufLen() int {
	if s.extended {
		return bufLenExtended
	}
	return bufLenShort
}

func (s *Session) transmit(apdu APDU) ([]byte, error) {
	apdu.Elf = s.extended
	return s.transport.TransmitAPDU(apdu)
}

// getData issues GET DATA for tag, sized for the session's negotiated
// extended-length capability.
func getData(s *Session, tag uint16) ([]byte, error) {
	return s.transmit(APDU{
		Ins: insGetData,
		P1:  byte(tag >> 8),
		P2:  byte(tag),
		Le:  s.bufLen(),
	})
}

// getPublicKey issues the GENERATE ASYMMETRIC KEY PAIR "read" variant used to
// fetch an existing key's public parameters without regenerating it.
func getPublicKey(s *Session, tag uint16) ([]byte, error) {
	data := []byte{byte(tag >> 8), byte(tag)}
	return s.transmit(APDU{
		Ins:  insGenerateAsymm,
		P1:   p1GenAsymmRead,
		Data: data,
		Le:   s.bufLen(),
	})
}

// psoComputeSignature issues PSO: Compute Signature over data (a hash or a
// DigestInfo, depending on the selected key's padding scheme).
func psoComputeSignature(s *Session, data []byte) ([]byte, error) {
	return s.transmit(APDU{
		Ins:  insPSO,
		P1:   p1PSOSign,
		P2:   p2PSOSign,
		Data: data,
		Le:   s.bufLen(),
	})
}

// psoDecipher issues PSO: Decipher. The core owns the funny padding
// indicator byte that RSA decipher requires: a single 0x00 prepended to the
// ciphertext, never supplied by the caller.
func psoDecipher(s *Session, ciphertext []byte) ([]byte, error) {
	data := make([]byte, 0, len(ciphertext)+1)
	data = append(data, 0x00)
	data = append(data, ciphertext...)
	return s.transmit(APDU{
		Ins:  insPSO,
		P1:   p1PSODecipher,
		P2:   p2PSODecipher,
		Data: data,
		Pib:  true,
		Le:   s.bufLen(),
	})
}

// internalAuthenticate issues INTERNAL AUTHENTICATE over challenge, used for
// SIGN operations routed to the authentication key (key ref 0x02).
func internalAuthenticate(s *Session, challenge []byte) ([]byte, error) {
	return s.transmit(APDU{
		Ins:  insInternalAuth,
		Data: challenge,
		Le:   s.bufLen(),
	})
}
