package handshake

// accounts.go resolves peer credentials for CredsRequired, grounded on
// original_source/src/libpcp/src/accounts.c: this package needs only
// the slice of that file's surface relevant to admitting a
// local-filesystem socket without an AUTH round trip (uid/gid/pid
// already known from the kernel), not the full account-lookup API
// (group/home-directory resolution) accounts.c also provides.

// Creds identifies the principal a handshake admits.
type Creds struct {
	UID  int
	GID  int
	PID  int
	Name string // set once a mechanism resolves an account name
}
