package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned when a staff password does not match
// its stored hash, or the account has no password set.
var ErrPasswordMismatch = errors.New("password mismatch")

// CheckPassword compares plain against a bcrypt hash from the users
// table.  Hashes are provisioned outside the ledger, so there is no
// hashing counterpart here.
func CheckPassword(hash, plain string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
