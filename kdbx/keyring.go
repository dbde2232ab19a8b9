// Package kdbx stores a small encrypted mapping from card serial numbers to
// user-chosen nicknames, so the CLI can greet a known card by name instead
// of by its raw serial.
package kdbx

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

var ErrLocked = errors.New("kdbx: keyring passphrase incorrect or file corrupt")

const (
	saltLen      = 16
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = chacha20poly1305.KeySize
)

// Keyring is an in-memory view of the serial-to-nickname mapping. Load
// decrypts it from disk; Save re-encrypts it with a fresh salt and nonce.
type Keyring struct {
	Nicknames map[string]string // hex serial -> nickname
}

type keyringFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// NewKeyring returns an empty keyring, ready to be populated and saved.
func NewKeyring() *Keyring {
	return &Keyring{Nicknames: make(map[string]string)}
}

// Load reads and decrypts a keyring file. A missing file is not an error: it
// returns a fresh empty keyring so first-run callers don't need special
// casing.
func Load(path string, passphrase []byte) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewKeyring(), nil
	}
	if err != nil {
		return nil, err
	}

	var kf keyringFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("kdbx: parse keyring: %w", err)
	}

	key, err := scrypt.Key(passphrase, kf.Salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("kdbx: derive key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, kf.Nonce, kf.Ciphertext, nil)
	if err != nil {
		return nil, ErrLocked
	}

	var k Keyring
	if err := json.Unmarshal(plain, &k); err != nil {
		return nil, fmt.Errorf("kdbx: parse keyring contents: %w", err)
	}
	if k.Nicknames == nil {
		k.Nicknames = make(map[string]string)
	}
	return &k, nil
}

// Save encrypts the keyring under a freshly derived key and writes it to
// path, replacing any existing file.
func (k *Keyring) Save(path string, passphrase []byte) error {
	plain, err := json.Marshal(k)
	if err != nil {
		return err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return fmt.Errorf("kdbx: derive key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ciphertext := aead.Seal(nil, nonce, plain, nil)

	out, err := json.Marshal(keyringFile{Salt: salt, Nonce: nonce, Ciphertext: ciphertext})
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}

// Nickname returns the stored nickname for a hex-encoded serial, if any.
func (k *Keyring) Nickname(serialHex string) (string, bool) {
	name, ok := k.Nicknames[serialHex]
	return name, ok
}

// SetNickname records a nickname for a hex-encoded serial.
func (k *Keyring) SetNickname(serialHex, nickname string) {
	k.Nicknames[serialHex] = nickname
}
