package card

import "errors"

// Error kinds surfaced to callers of the virtual filesystem and crypto
// dispatch. Transport errors (APDU transmit failures, SW1/SW2 decoding) pass
// through unchanged from the Transport collaborator.
var (
	ErrOutOfMemory         = errors.New("card: out of memory")
	ErrInvalidArguments    = errors.New("card: invalid arguments")
	ErrNotSupported        = errors.New("card: not supported")
	ErrFileNotFound        = errors.New("card: file not found")
	ErrObjectNotValid      = errors.New("card: object not valid")
	ErrIncorrectParameters = errors.New("card: incorrect parameters")
	ErrNoCurrentFile       = errors.New("card: no current file selected")
	ErrUnrecognizedCard    = errors.New("card: ATR does not match a recognized OpenPGP card")
)
