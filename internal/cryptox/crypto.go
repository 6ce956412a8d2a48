// Package cryptox implements KStor's cryptographic primitives: a
// passphrase-based KDF, symmetric authenticated encryption ("secretbox"),
// public-key authenticated encryption ("box"), and key generation. All
// functions operate on raw byte slices; callers at the controller layer are
// responsible for wrapping inputs/outputs in armored values (package armor)
// before they cross a repository or wire boundary.
package cryptox

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	ErrKDFFail     = errors.New("cryptox: kdf failure")
	ErrDecryptFail = errors.New("cryptox: decryption failed")
	ErrEncryptFail = errors.New("cryptox: encryption failed")
	ErrBadKey      = errors.New("cryptox: bad key")
)

// CurrentKDFVersion tags the KDF parameter set produced by DeriveKey when no
// prior params are supplied. KDFParamsObsolete compares against this value.
const CurrentKDFVersion = 1

const (
	saltSize       = 16
	secretKeySize  = 32 // secretbox key size, also the argon2id digest size
	secretboxNonce = 24
	boxNonceSize   = 24

	defaultOpsLimit = 3
	defaultMemLimit = 64 * 1024 // KiB, matches argon2.IDKey's memory parameter
	argon2Threads   = 4
)

// KDFParams records the parameters argon2id was run with, so the same
// passphrase can later be re-derived into the same key. It round-trips to
// JSON and is the structured map described in spec §3.
type KDFParams struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	OpsLimit   uint32 `json:"opslimit"`
	MemLimit   uint32 `json:"memlimit"`
	DigestSize uint32 `json:"digest_size"`
}

// SecretKey is a symmetric key derived from a user passphrase, together with
// the parameters used to derive it.
type SecretKey struct {
	Value  []byte
	Params KDFParams
}

// KeyPair is a NaCl box keypair used for per-user and per-group identities.
type KeyPair struct {
	Pub  [32]byte
	Priv [32]byte
}

// DeriveKey runs argon2id over passphrase using params, or freshly generated
// moderate parameters when params is nil. The returned SecretKey always
// carries the params it was derived with, so the caller can persist them.
func DeriveKey(passphrase []byte, params *KDFParams) (*SecretKey, error) {
	var p KDFParams
	if params == nil {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, ErrKDFFail
		}
		p = KDFParams{
			Version:    CurrentKDFVersion,
			Salt:       salt,
			OpsLimit:   defaultOpsLimit,
			MemLimit:   defaultMemLimit,
			DigestSize: secretKeySize,
		}
	} else {
		p = *params
	}

	if len(p.Salt) == 0 || p.DigestSize == 0 {
		return nil, ErrBadKey
	}

	key := argon2.IDKey(passphrase, p.Salt, p.OpsLimit, p.MemLimit, argon2Threads, p.DigestSize)

	return &SecretKey{Value: key, Params: p}, nil
}

// KDFParamsObsolete reports whether params were produced by a version of the
// KDF other than the one this build uses. Callers SHOULD re-derive and
// re-encrypt when this returns true.
func KDFParamsObsolete(params KDFParams) bool {
	return params.Version != CurrentKDFVersion
}

// GenerateKeyPair creates a fresh NaCl box keypair for public-key
// authenticated encryption.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, ErrKDFFail
	}
	return &KeyPair{Pub: *pub, Priv: *priv}, nil
}

// SealSecret symmetrically encrypts plaintext under key using a fresh random
// nonce, which is bundled into the returned ciphertext.
func SealSecret(key []byte, plaintext []byte) ([]byte, error) {
	if len(key) != secretKeySize {
		return nil, ErrBadKey
	}
	var k [secretKeySize]byte
	copy(k[:], key)

	var nonce [secretboxNonce]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, ErrEncryptFail
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &k)
	return sealed, nil
}

// OpenSecret decrypts a ciphertext produced by SealSecret.
func OpenSecret(key []byte, ciphertext []byte) ([]byte, error) {
	if len(key) != secretKeySize {
		return nil, ErrBadKey
	}
	if len(ciphertext) < secretboxNonce {
		return nil, ErrDecryptFail
	}
	var k [secretKeySize]byte
	copy(k[:], key)

	var nonce [secretboxNonce]byte
	copy(nonce[:], ciphertext[:secretboxNonce])

	plaintext, ok := secretbox.Open(nil, ciphertext[secretboxNonce:], &nonce, &k)
	if !ok {
		return nil, ErrDecryptFail
	}
	return plaintext, nil
}

// SealPair encrypts plaintext for recipientPub, authenticated as having come
// from senderPriv. The sender's identity is cryptographically verified by
// the recipient on OpenPair.
func SealPair(recipientPub *[32]byte, senderPriv *[32]byte, plaintext []byte) ([]byte, error) {
	if recipientPub == nil || senderPriv == nil {
		return nil, ErrBadKey
	}
	var nonce [boxNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, ErrEncryptFail
	}

	sealed := box.Seal(nonce[:], plaintext, &nonce, recipientPub, senderPriv)
	return sealed, nil
}

// OpenPair decrypts a ciphertext produced by SealPair, verifying it was
// authored by the holder of the private key matching senderPub.
func OpenPair(senderPub *[32]byte, recipientPriv *[32]byte, ciphertext []byte) ([]byte, error) {
	if senderPub == nil || recipientPriv == nil {
		return nil, ErrBadKey
	}
	if len(ciphertext) < boxNonceSize {
		return nil, ErrDecryptFail
	}
	var nonce [boxNonceSize]byte
	copy(nonce[:], ciphertext[:boxNonceSize])

	plaintext, ok := box.Open(nil, ciphertext[boxNonceSize:], &nonce, senderPub, recipientPriv)
	if !ok {
		return nil, ErrDecryptFail
	}
	return plaintext, nil
}

// WipeByteArray overwrites b with zeros. Sensitive byte containers (private
// keys, plaintexts, passphrase-derived keys) should be wiped as soon as they
// leave scope; see spec §5 "Secret hygiene".
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
