package card

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"math/big"

	"github.com/malivvan/opgpcard/tlv"
)

// DefaultPublicKeyEncoder backs the PEM/ASN.1 collaborator with the standard
// library. It is the implementation used unless a Session is constructed
// with a different PublicKeyEncoder (the collaborator is explicitly out of
// scope for this driver per spec.md §1 and §4.5).
type DefaultPublicKeyEncoder struct{}

// EncodeRSAPublicKey builds a PKIX-wrapped PEM block from raw big-endian
// modulus and exponent bytes.
func (DefaultPublicKeyEncoder) EncodeRSAPublicKey(modulus, exponent []byte) ([]byte, error) {
	n := new(big.Int).SetBytes(modulus)
	e := new(big.Int).SetBytes(exponent)
	if !e.IsInt64() || e.Int64() == 0 {
		return nil, ErrObjectNotValid
	}
	pub := &rsa.PublicKey{N: n, E: int(e.Int64())}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return pem.EncodeToMemory(block), nil
}

// synthesizePEM implements spec.md §4.5: fetch the real key DO, descend into
// its 7F49 public key template, pull out the modulus and exponent children,
// and hand them to the key encoder collaborator. The returned buffer is a
// fresh copy; no blob-owned storage is aliased out of the session.
func (s *Session) synthesizePEM(realTag uint16) ([]byte, error) {
	keyBlob, err := s.mf.getChild(realTag)
	if err != nil {
		return nil, err
	}

	tmpl, ok := tlv.Find(keyBlob.cachedBytes, tagPublicKeyTemplate)
	if !ok {
		return nil, ErrObjectNotValid
	}
	modObj, ok := tlv.Find(tmpl.Value, tagModulus)
	if !ok {
		return nil, ErrObjectNotValid
	}
	expObj, ok := tlv.Find(tmpl.Value, tagExponent)
	if !ok {
		return nil, ErrObjectNotValid
	}

	encoded, err := s.keyEncoder.EncodeRSAPublicKey(modObj.Value, expObj.Value)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(encoded))
	copy(out, encoded)
	return out, nil
}
