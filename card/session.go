package card

import (
	"bytes"
)

// CardType distinguishes the two RSA key-size tiers this driver registers
// (spec.md §4.7 step 2).
type CardType int

const (
	CardTypeOpenPGPv1 CardType = iota // OpenPGP Card v1.0 / v1.1
	CardTypeOpenPGPv2                 // OpenPGP Card v2.0 / CryptoStick v1.2
)

// AidOpenPGP is the AID this driver selects (spec.md §6).
var AidOpenPGP = []byte{0xD2, 0x76, 0x00, 0x01, 0x24, 0x01}

type knownATR struct {
	atr  []byte
	typ  CardType
	name string
}

// knownATRs is the recognized-card table (spec.md §6, §7.1). ATR byte
// strings for OpenPGP-application smart cards, matched by exact equality.
var knownATRs = []knownATR{
	{
		atr:  []byte{0x3B, 0xFA, 0x13, 0x00, 0xFF, 0x81, 0x31, 0x80, 0x45, 0x00, 0x31, 0xC1, 0x73, 0xC0, 0x01, 0x00, 0x00, 0x90, 0x00, 0xB1},
		typ:  CardTypeOpenPGPv1,
		name: "OpenPGP Card v1.0/1.1",
	},
	{
		atr:  []byte{0x3B, 0xFA, 0x13, 0x00, 0xFF, 0x81, 0x31, 0x80, 0x45, 0x00, 0x31, 0xC1, 0x73, 0xC0, 0x01, 0x00, 0x00, 0x90, 0x00, 0x0C},
		typ:  CardTypeOpenPGPv2,
		name: "CryptoStick v1.2 / OpenPGP Card v2.0",
	},
}

// MatchATR compares atr against the recognized-card table and reports the
// card type and friendly name on a match.
func MatchATR(atr []byte) (CardType, string, bool) {
	for _, k := range knownATRs {
		if bytes.Equal(k.atr, atr) {
			return k.typ, k.name, true
		}
	}
	return 0, "", false
}

// AlgorithmInfo describes one RSA key size this driver advertises as
// supported, per spec.md §4.7 step 2.
type AlgorithmInfo struct {
	KeyBits int
	Raw     bool // RAW RSA supported
	PKCS1   bool // PKCS#1 padding supported
}

func algorithmsFor(typ CardType) []AlgorithmInfo {
	sizes := []int{512, 768, 1024}
	if typ == CardTypeOpenPGPv2 {
		sizes = append(sizes, 2048)
	}
	infos := make([]AlgorithmInfo, len(sizes))
	for i, bits := range sizes {
		infos[i] = AlgorithmInfo{KeyBits: bits, Raw: true, PKCS1: true}
	}
	return infos
}

// ControlCode identifies a card_ctl request.
type ControlCode int

const (
	CtlGetSerialNumber ControlCode = iota
)

// PinKind identifies the class of PIN command requested; this driver only
// accepts CHV-class PINs (spec.md §4.7).
type PinKind int

const (
	PinKindCHV PinKind = iota
)

// Session is the per-card driver instance. It owns the virtual filesystem
// tree and the active security environment; it is not safe for concurrent
// use (spec.md §5) and must be bound to exactly one connected card.
type Session struct {
	transport  Transport
	keyEncoder PublicKeyEncoder

	cardType CardType
	cardName string
	serial   []byte
	extended bool

	mf          *blob
	current     *blob
	securityEnv *SecurityEnv
}

// NewSession constructs a driver instance bound to transport. keyEncoder may
// be nil, in which case DefaultPublicKeyEncoder is used.
func NewSession(transport Transport, keyEncoder PublicKeyEncoder) *Session {
	if keyEncoder == nil {
		keyEncoder = DefaultPublicKeyEncoder{}
	}
	return &Session{transport: transport, keyEncoder: keyEncoder}
}

// Init implements spec.md §4.7 Init: allocates the MF, negotiates
// extended-length capability, selects the OpenPGP application, reads the
// serial number, and eagerly creates a blob for every registry entry.
func (s *Session) Init() error {
	s.mf = &blob{id: tagMF, kind: KindDF, sess: s}

	typ, name, ok := MatchATR(s.transport.ATR())
	if !ok {
		s.Finish()
		return ErrUnrecognizedCard
	}
	s.cardType = typ
	s.cardName = name

	if err := s.transport.SelectFileByAID(AidOpenPGP); err != nil {
		s.Finish()
		return err
	}

	// Eagerly create a blob for each registry entry as a child of MF,
	// preserving registry order (spec invariant: sibling order is
	// registry order for the root).
	for i := range registry {
		d := registry[i]
		s.mf.children = append(s.mf.children, &blob{
			id:     d.tag,
			kind:   kindOf(d),
			desc:   &d,
			parent: s.mf,
			sess:   s,
		})
	}
	s.mf.enumd = true

	aidBlob, err := s.mf.getChild(0x004F)
	if err == nil && len(aidBlob.cachedBytes) >= 14 {
		s.serial = append([]byte(nil), aidBlob.cachedBytes[8:14]...)
	}

	if hist, err := s.mf.getChild(0x5F52); err == nil {
		s.extended = extendedLengthSupported(hist.cachedBytes)
	}

	return nil
}

func kindOf(d descriptor) Kind {
	if d.constructed {
		return KindDF
	}
	return KindEF
}

// extendedLengthSupported implements spec.md §4.7 step 5: scan historical
// bytes for 0x73, then check bit 0x40 of the byte three positions later.
func extendedLengthSupported(hist []byte) bool {
	for i, b := range hist {
		if b != 0x73 {
			continue
		}
		if i+3 < len(hist) {
			return hist[i+3]&0x40 != 0
		}
		return false
	}
	return false
}

// Finish implements spec.md §4.7 Finish: post-order frees every blob and
// resets the session to its zero state.
func (s *Session) Finish() {
	if s.mf != nil {
		s.mf.teardown()
	}
	s.mf = nil
	s.current = nil
	s.securityEnv = nil
}

// CardCtl implements spec.md §4.7 card_ctl. Only GetSerialNumber is
// supported; every other code fails with ErrNotSupported.
func (s *Session) CardCtl(code ControlCode) ([]byte, error) {
	if code != CtlGetSerialNumber {
		return nil, ErrNotSupported
	}
	return append([]byte(nil), s.serial...), nil
}

// PinCmd implements spec.md §4.7 pin_cmd: only CHV-type PINs are accepted;
// bit 0x80 is set on the PIN reference before delegating to the transport
// (OpenPGP PINs use references 0x81, 0x82, 0x83).
func (s *Session) PinCmd(kind PinKind, ref byte, data []byte) (triesLeft int, err error) {
	if kind != PinKindCHV {
		return 0, ErrNotSupported
	}
	return s.transport.PinCmd(ref|0x80, data)
}

// CardType reports the card type discovered at Init.
func (s *Session) CardType() CardType { return s.cardType }

// CardName reports the friendly name discovered at Init.
func (s *Session) CardName() string { return s.cardName }

// SupportedAlgorithms reports the RSA key sizes this card type supports.
func (s *Session) SupportedAlgorithms() []AlgorithmInfo {
	return algorithmsFor(s.cardType)
}

// SelectFile implements spec.md §4.4 select_file for hierarchical paths. A
// leading 0x3F00 (MF) segment, if present, is stripped before descending.
// On failure the current-node pointer is cleared; the next SelectFile call
// must start from the root implicitly (it always does, since traversal
// always begins at MF).
func (s *Session) SelectFile(path []uint16) (FileDescriptor, error) {
	if len(path) > 0 && path[0] == tagMF {
		path = path[1:]
	}
	node := s.mf
	for _, tag := range path {
		child, err := node.getChild(tag)
		if err != nil {
			s.current = nil
			return FileDescriptor{}, err
		}
		node = child
	}
	s.current = node
	return node.descriptorView(), nil
}

// ListFiles implements spec.md §4.4 list_files: the current node must be a
// DF; each child's tag is emitted as two big-endian bytes into buf, up to
// its capacity.
func (s *Session) ListFiles(buf []byte) (int, error) {
	if s.current == nil {
		return 0, ErrNoCurrentFile
	}
	if s.current.kind != KindDF {
		return 0, ErrInvalidArguments
	}
	if err := s.current.enumerate(); err != nil {
		return 0, err
	}
	n := 0
	for _, c := range s.current.children {
		if n+2 > len(buf) {
			break
		}
		buf[n] = byte(c.id >> 8)
		buf[n+1] = byte(c.id)
		n += 2
	}
	return n, nil
}

// ReadBinary implements spec.md §4.4 read_binary: the current node must be
// an EF.
func (s *Session) ReadBinary(offset int, buf []byte) (int, error) {
	if s.current == nil {
		return 0, ErrNoCurrentFile
	}
	if s.current.kind != KindEF {
		return 0, ErrInvalidArguments
	}
	if err := s.current.fetch(); err != nil {
		return 0, err
	}
	data := s.current.cachedBytes
	if offset > len(data) {
		return 0, ErrIncorrectParameters
	}
	n := copy(buf, data[offset:])
	return n, nil
}

// WriteBinary implements spec.md §4.4 write_binary: unconditionally refused.
func (s *Session) WriteBinary(offset int, data []byte) (int, error) {
	return 0, ErrNotSupported
}

// GetData fetches tag directly, without changing the current-node pointer.
func (s *Session) GetData(tag uint16) ([]byte, error) {
	b, err := s.mf.getChild(tag)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b.cachedBytes))
	copy(out, b.cachedBytes)
	return out, nil
}

// PutData always refuses: writing/personalizing DOs is a non-goal
// (spec.md §1, §7).
func (s *Session) PutData(tag uint16, data []byte) error {
	return ErrNotSupported
}
