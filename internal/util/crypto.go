package util

import "golang.org/x/crypto/bcrypt"

// CheckTokenHash compares a bearer token against its configured bcrypt hash.
func CheckTokenHash(token, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}
