package scard

import (
	"github.com/malivvan/opgpcard/card"
)

// AsTransport adapts a connected Card to the card.Transport interface
// consumed by the OpenPGP driver.
func (c *Card) AsTransport() card.Transport {
	return cardTransport{c}
}

type cardTransport struct {
	card *Card
}

func (t cardTransport) ATR() []byte {
	return []byte(t.card.ATR())
}

func (t cardTransport) SelectFileByAID(aid []byte) error {
	return t.card.Select(aid)
}

func (t cardTransport) TransmitAPDU(apdu card.APDU) ([]byte, error) {
	return t.card.Transmit(APDU{
		Cla:  apdu.Cla,
		Ins:  apdu.Ins,
		P1:   apdu.P1,
		P2:   apdu.P2,
		Data: apdu.Data,
		Le:   apdu.Le,
		Pib:  apdu.Pib,
		Elf:  apdu.Elf,
	})
}

// PinCmd issues a VERIFY command (ISO 7816-4 INS 0x20) against the given
// CHV reference. scard.errorCodes collapses SW 63Cx (tries remaining) into a
// single sentinel per distinct SW2 rather than a decoded count, so there is
// nothing to recover a tries-left number from; this returns -1 (unknown) on
// success and propagates the transport error otherwise.
func (t cardTransport) PinCmd(ref byte, data []byte) (int, error) {
	_, err := t.card.Transmit(APDU{Cla: 0x00, Ins: 0x20, P1: 0x00, P2: ref, Data: data})
	if err != nil {
		return 0, err
	}
	return -1, nil
}
