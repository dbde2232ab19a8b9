package card

// APDU is the command shape the crypto dispatch and virtual filesystem build;
// a Transport implementation is responsible for wire framing (short vs.
// extended length fields, SW1/SW2 decoding).
type APDU struct {
	Cla  uint8
	Ins  uint8
	P1   uint8
	P2   uint8
	Data []byte
	Le   int // expected response length
	Pib  bool
	Elf  bool // use extended-length fields
}

// Transport is the ISO 7816-4 collaborator consumed by this driver. It is
// deliberately narrow: select-by-AID, raw APDU transmit with SW1/SW2 already
// decoded into an error, PIN verification, and the connected card's ATR.
// scard.Card.AsTransport (see the sibling scard package) adapts a connected
// card to it.
type Transport interface {
	ATR() []byte
	SelectFileByAID(aid []byte) error
	TransmitAPDU(apdu APDU) ([]byte, error)
	PinCmd(ref byte, data []byte) (triesLeft int, err error)
}

// PublicKeyEncoder is the PEM/ASN.1 encoding collaborator used to materialize
// the virtual B601/B801/A401 DOs. See DefaultPublicKeyEncoder for the
// standard-library backed implementation.
type PublicKeyEncoder interface {
	EncodeRSAPublicKey(modulus, exponent []byte) ([]byte, error)
}
