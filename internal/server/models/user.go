// Package models defines KStor's domain objects and the crypto lifecycle
// methods attached to them (spec §3, §4.1, §4.2). Repositories populate and
// persist these structs; controllers call their Unlock/Encrypt/Lock methods
// to move private material in and out of memory for the span of one request.
package models

import (
	"time"

	"github.com/dmitrijs2005/kstor/internal/cryptox"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
)

// Status is a User's lifecycle state (spec §3).
type Status string

const (
	StatusNew      Status = "new"
	StatusActive   Status = "active"
	StatusAdmin    Status = "admin"
	StatusArchived Status = "archived"
)

// CanAuthenticate reports whether a user in this status may perform
// ordinary (non-activation) requests.
func (s Status) CanAuthenticate() bool {
	return s == StatusActive || s == StatusAdmin
}

// User is the holder of a passphrase-derived identity and a keychain of
// group private keys. Privk and every KeychainItem.Privk are ephemeral:
// present only between Unlock and Lock.
type User struct {
	ID     int64
	Login  string
	Name   string
	Status Status

	Pubk      [32]byte
	KDFParams cryptox.KDFParams

	EncryptedPrivk []byte

	Privk    *[32]byte
	Keychain map[int64]*KeychainItem

	CreatedAt time.Time
	Dirty     bool
}

// Initialized reports whether kdf_params, pubk, and encrypted_privk are all
// present. An uninitialized user cannot participate in any crypto operation
// until ResetPassword populates them (spec §3 invariant).
func (u *User) Initialized() bool {
	return u.KDFParams.Version != 0 && u.EncryptedPrivk != nil
}

func (u *User) unlocked() bool {
	return u.Privk != nil
}

// SecretKeyFor derives the user's secret key from password. If the user is
// uninitialized it is first bootstrapped via ResetPassword (spec §4.2).
func (u *User) SecretKeyFor(password []byte) (*cryptox.SecretKey, error) {
	if !u.Initialized() {
		if _, err := u.ResetPassword(password); err != nil {
			return nil, err
		}
	}
	return cryptox.DeriveKey(password, &u.KDFParams)
}

// Unlock decrypts Privk and every keychain item's private key in memory,
// using secretKey (the passphrase-derived symmetric key). A no-op if the
// user is already unlocked.
func (u *User) Unlock(secretKey []byte) error {
	if u.unlocked() {
		return nil
	}

	privkBytes, err := cryptox.OpenSecret(secretKey, u.EncryptedPrivk)
	if err != nil {
		return kstorerr.New(kstorerr.CryptoUnspecified)
	}
	if len(privkBytes) != 32 {
		return kstorerr.New(kstorerr.CryptoUnspecified)
	}
	var privk [32]byte
	copy(privk[:], privkBytes)
	cryptox.WipeByteArray(privkBytes)
	u.Privk = &privk

	for _, kci := range u.Keychain {
		groupPrivkBytes, err := cryptox.OpenPair(&kci.GroupPubk, u.Privk, kci.EncryptedPrivk)
		if err != nil {
			return kstorerr.New(kstorerr.CryptoUnspecified)
		}
		if len(groupPrivkBytes) != 32 {
			return kstorerr.New(kstorerr.CryptoUnspecified)
		}
		var groupPrivk [32]byte
		copy(groupPrivk[:], groupPrivkBytes)
		cryptox.WipeByteArray(groupPrivkBytes)
		kci.Privk = &groupPrivk
	}

	return nil
}

// Encrypt re-seals Privk under secretKey, and every keychain item's private
// key from that group key to the user's public key (the pairing Unlock
// opens), overwriting the stored ciphertexts.
// The user must be unlocked.
func (u *User) Encrypt(secretKey []byte) error {
	if !u.unlocked() {
		return kstorerr.New(kstorerr.CryptoUnspecified)
	}

	sealed, err := cryptox.SealSecret(secretKey, u.Privk[:])
	if err != nil {
		return kstorerr.New(kstorerr.CryptoUnspecified)
	}
	u.EncryptedPrivk = sealed
	u.Dirty = true

	for _, kci := range u.Keychain {
		if kci.Privk == nil {
			continue
		}
		sealedGroupKey, err := cryptox.SealPair(&u.Pubk, kci.Privk, kci.Privk[:])
		if err != nil {
			return kstorerr.New(kstorerr.CryptoUnspecified)
		}
		kci.EncryptedPrivk = sealedGroupKey
		kci.Dirty = true
	}

	return nil
}

// Lock clears Privk and every keychain item's private key from memory. The
// dispatcher calls this unconditionally after every request (spec §4.6).
func (u *User) Lock() {
	if u.Privk != nil {
		cryptox.WipeByteArray(u.Privk[:])
		u.Privk = nil
	}
	for _, kci := range u.Keychain {
		if kci.Privk != nil {
			cryptox.WipeByteArray(kci.Privk[:])
			kci.Privk = nil
		}
	}
}

// ResetPassword bootstraps an uninitialized user: generates a fresh
// keypair, derives a secret key from password, records new KDF params, and
// re-seals with an empty keychain. Any existing keychain is discarded,
// because its entries were sealed under the user's previous keypair
// (spec §4.2, §9 Open Question 3: reset_password is restricted to the
// initialization path; callers must use ChangePassword on an initialized
// user).
func (u *User) ResetPassword(password []byte) (*cryptox.SecretKey, error) {
	kp, err := cryptox.GenerateKeyPair()
	if err != nil {
		return nil, kstorerr.New(kstorerr.CryptoUnspecified)
	}

	secretKey, err := cryptox.DeriveKey(password, nil)
	if err != nil {
		return nil, kstorerr.New(kstorerr.CryptoUnspecified)
	}

	u.Pubk = kp.Pub
	u.Privk = &kp.Priv
	u.KDFParams = secretKey.Params
	u.Keychain = make(map[int64]*KeychainItem)

	if err := u.Encrypt(secretKey.Value); err != nil {
		return nil, err
	}

	u.Dirty = true
	return secretKey, nil
}

// ChangePassword re-derives the user's secret key under a fresh salt and
// re-seals the existing keychain, preserving group membership (spec §4.2;
// contrast with ResetPassword, which empties the keychain).
func (u *User) ChangePassword(oldPassword []byte, newPassword []byte) (*cryptox.SecretKey, error) {
	oldKey, err := cryptox.DeriveKey(oldPassword, &u.KDFParams)
	if err != nil {
		return nil, kstorerr.New(kstorerr.CryptoUnspecified)
	}
	if err := u.Unlock(oldKey.Value); err != nil {
		return nil, err
	}

	newKey, err := cryptox.DeriveKey(newPassword, nil)
	if err != nil {
		return nil, kstorerr.New(kstorerr.CryptoUnspecified)
	}

	if err := u.Encrypt(newKey.Value); err != nil {
		return nil, err
	}
	u.KDFParams = newKey.Params
	u.Dirty = true
	return newKey, nil
}
