package models

import (
	"testing"

	"github.com/dmitrijs2005/kstor/internal/cryptox"
)

// makeGroupKeyForTest returns a Group (with a fresh keypair) and its
// private key, standing in for the group-creation flow exercised in the
// secretctl/adminctl packages.
func makeGroupKeyForTest(t *testing.T) (*Group, [32]byte) {
	t.Helper()
	kp, err := cryptox.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate group keypair: %v", err)
	}
	return &Group{ID: 1, Name: "ops", Pubk: kp.Pub}, kp.Priv
}

// sealGroupKeyForUser seals groupPriv for u, authenticated as coming from
// the group itself, mirroring GroupAddUser's crypto step: recipientPub is
// the target user's pubk, senderPriv is the group's own private key.
func sealGroupKeyForUser(t *testing.T, u *User, groupPriv [32]byte) ([]byte, error) {
	t.Helper()
	return cryptox.SealPair(&u.Pubk, &groupPriv, groupPriv[:])
}
