package models

// Group is a named collection of members who share access to the secrets
// granted to it. The group private key is never stored on the Group
// itself; it exists only inside member users' KeychainItem.Privk while
// they are unlocked (spec §3).
type Group struct {
	ID    int64
	Name  string
	Pubk  [32]byte
	Dirty bool

	// Members is populated by GroupGet (spec §4.5); zero value elsewhere.
	Members []*User
}
