package pkg

import (
	"crypto/rand"
	"unsafe"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// BytesToString converts bytes slice to a string without extra allocation
func BytesToString(buf []byte) string {
	return *(*string)(unsafe.Pointer(&buf))
}

// GenerateRandomBytes returns securely generated random bytes.
// It will return an error if the system's secure random
// number generator fails to function correctly, in which
// case the caller should not continue
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateCode returns a securely generated random alphanumeric string
// of length n. Used for session tokens (long) and page codes (short).
// Bytes >= 248 are rejected so the mapping onto the 62-char alphabet
// stays uniform (248 = 4 * 62).
func GenerateCode(n int) (string, error) {
	code := make([]byte, 0, n)
	for len(code) < n {
		buf, err := GenerateRandomBytes(n)
		if err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == n {
				break
			}
		}
	}
	return BytesToString(code), nil
}
