package cryptox

import (
	"bytes"
	"testing"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	passphrase := []byte("correct horse battery staple")

	k1, err := DeriveKey(passphrase, nil)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	k2, err := DeriveKey(passphrase, &k1.Params)
	if err != nil {
		t.Fatalf("re-derive: %v", err)
	}

	if !bytes.Equal(k1.Value, k2.Value) {
		t.Fatalf("deriving with the same params must yield the same key")
	}
}

func TestDeriveKey_DifferentSaltsDiffer(t *testing.T) {
	passphrase := []byte("hunter2")

	k1, err := DeriveKey(passphrase, nil)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := DeriveKey(passphrase, nil)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if bytes.Equal(k1.Value, k2.Value) {
		t.Fatalf("two fresh derivations must use independent salts")
	}
}

func TestKDFParamsObsolete(t *testing.T) {
	k, err := DeriveKey([]byte("x"), nil)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if KDFParamsObsolete(k.Params) {
		t.Fatalf("freshly derived params must not be obsolete")
	}

	stale := k.Params
	stale.Version = CurrentKDFVersion - 1
	if !KDFParamsObsolete(stale) {
		t.Fatalf("params with a stale version must be reported obsolete")
	}
}

func TestSealOpenSecret_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, secretKeySize)
	plaintext := []byte("the quick brown fox")

	ciphertext, err := SealSecret(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := OpenSecret(key, ciphertext)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("want %q got %q", plaintext, got)
	}
}

func TestSealSecret_FreshNoncePerCall(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, secretKeySize)
	plaintext := []byte("same plaintext")

	c1, err := SealSecret(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	c2, err := SealSecret(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Equal(c1, c2) {
		t.Fatalf("ciphertexts of identical plaintext must differ (fresh nonce)")
	}
}

func TestOpenSecret_WrongKeyFails(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, secretKeySize)
	wrongKey := bytes.Repeat([]byte{0x08}, secretKeySize)

	ciphertext, err := SealSecret(key, []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := OpenSecret(wrongKey, ciphertext); err != ErrDecryptFail {
		t.Fatalf("expected ErrDecryptFail, got %v", err)
	}
}

func TestSealOpenPair_RoundTrip(t *testing.T) {
	sender, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate sender: %v", err)
	}
	recipient, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate recipient: %v", err)
	}

	plaintext := []byte("group private key bytes")
	ciphertext, err := SealPair(&recipient.Pub, &sender.Priv, plaintext)
	if err != nil {
		t.Fatalf("seal pair: %v", err)
	}

	got, err := OpenPair(&sender.Pub, &recipient.Priv, ciphertext)
	if err != nil {
		t.Fatalf("open pair: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("want %q got %q", plaintext, got)
	}
}

func TestOpenPair_WrongSenderFails(t *testing.T) {
	sender, _ := GenerateKeyPair()
	impostor, _ := GenerateKeyPair()
	recipient, _ := GenerateKeyPair()

	ciphertext, err := SealPair(&recipient.Pub, &sender.Priv, []byte("hi"))
	if err != nil {
		t.Fatalf("seal pair: %v", err)
	}

	if _, err := OpenPair(&impostor.Pub, &recipient.Priv, ciphertext); err != ErrDecryptFail {
		t.Fatalf("expected ErrDecryptFail for mismatched sender identity, got %v", err)
	}
}

func TestWipeByteArray(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	WipeByteArray(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped: %d", i, v)
		}
	}
}
