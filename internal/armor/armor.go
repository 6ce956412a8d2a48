// Package armor implements the ASCII-armor envelope used to move binary
// cryptographic material (ciphertexts, public keys, sealed private keys,
// KDF parameters) across the wire protocol and into the relational store as
// plain text columns.
package armor

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Kind tags what an armored value's payload is. It has no effect on the
// encoding itself and is not written into the armored string, so Parse
// cannot check it; it only labels an in-memory Value.
type Kind string

const (
	KindCiphertext Kind = "ciphertext"
	KindPublicKey  Kind = "pubk"
	KindPrivateKey Kind = "privk"
	KindKDFParams  Kind = "kdf"
)

var ErrMalformed = errors.New("armor: malformed value")

const prefix = "kstor1:"

// Armor encodes an arbitrary byte string, including non-UTF-8 data, into an
// ASCII-safe value. The encoding is unambiguous and round-trips exactly via
// Unarmor.
func Armor(b []byte) string {
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// Unarmor decodes a value produced by Armor back into its original bytes.
func Unarmor(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, prefix)
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrMalformed
	}
	return b, nil
}

// Value is an opaque armored envelope kept in memory between unarmoring and
// re-armoring, so callers do not need to track a Kind alongside a raw string
// themselves.
type Value struct {
	Kind Kind
	Raw  []byte
}

func New(kind Kind, raw []byte) Value {
	return Value{Kind: kind, Raw: raw}
}

func (v Value) String() string {
	return Armor(v.Raw)
}

func Parse(kind Kind, s string) (Value, error) {
	raw, err := Unarmor(s)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: kind, Raw: raw}, nil
}
