package models

// KeychainItem is a user's sealed copy of one group's private key
// (spec §3). EncryptedPrivk is sealed for this user with authenticated
// public-key encryption from the group's pubk to the user's keypair; Privk
// is the plaintext group private key, present only while the owning User is
// unlocked.
type KeychainItem struct {
	GroupID        int64
	GroupPubk      [32]byte
	EncryptedPrivk []byte

	Privk *[32]byte
	Dirty bool
}
