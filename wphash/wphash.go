// Package wphash verifies passwords against the hash formats a migrated
// WordPress user base carries: phpass portable hashes ($P$/$H$), standard
// bcrypt, and WordPress-flavored bcrypt ($wp$2y$...). It also reports
// whether a stored hash should be upgraded to a clean bcrypt hash on the
// next successful login.
//
// Sync copies password hashes verbatim; nothing here runs during import.
// The login handler is the only caller.
package wphash

import (
	"crypto/md5"
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// itoa64 is the phpass base64 alphabet. It is not the RFC 4648 alphabet.
const itoa64 = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	minPortableLen = 34
	minCountLog2   = 7
	maxCountLog2   = 30
)

// Verify reports whether password matches the stored hash. The scheme is
// picked from the hash prefix:
//
//	$2a$ $2b$ $2x$ $2y$  bcrypt
//	$wp$2...             WordPress bcrypt wrapper, unwrapped then bcrypt
//	$P$ / $H$            phpass portable hash
//	anything else        plain string equality (pre-hash dev fixtures only)
//
// Malformed hashes of a recognized prefix verify as false; Verify never
// returns an error.
func Verify(password, stored string) bool {
	switch {
	case isBcrypt(stored):
		return bcrypt.CompareHashAndPassword([]byte(normalizeBcrypt(stored)), []byte(password)) == nil
	case isWordPressBcrypt(stored):
		return bcrypt.CompareHashAndPassword([]byte(normalizeBcrypt(stored)), []byte(password)) == nil
	case isPortable(stored):
		return verifyPortable(password, stored)
	default:
		return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
	}
}

// NeedsRehash reports whether the stored hash should be replaced with a
// fresh bcrypt hash once the plaintext is known. Portable hashes, the
// $wp$ wrapper, and plaintext all qualify; only clean bcrypt does not.
func NeedsRehash(stored string) bool {
	return !isBcrypt(stored)
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") ||
		strings.HasPrefix(h, "$2x$") || strings.HasPrefix(h, "$2y$")
}

func isWordPressBcrypt(h string) bool {
	return strings.HasPrefix(h, "$wp$2")
}

func isPortable(h string) bool {
	return (strings.HasPrefix(h, "$P$") || strings.HasPrefix(h, "$H$")) && len(h) >= minPortableLen
}

// normalizeBcrypt strips the $wp$ marker and coerces the PHP-only $2y$
// variant to $2a$, which x/crypto/bcrypt handles. The two variants hash
// identically for the password lengths WordPress produces.
func normalizeBcrypt(h string) string {
	if isWordPressBcrypt(h) {
		h = h[len("$wp"):]
	}
	if strings.HasPrefix(h, "$2y$") {
		h = "$2a$" + h[len("$2y$"):]
	}
	return h
}

// verifyPortable recomputes the phpass hash and compares the full string,
// header included. Structure: $P$ + count char + 8-byte salt + 22-char
// encoded MD5 state.
func verifyPortable(password, stored string) bool {
	countLog2 := strings.IndexByte(itoa64, stored[3])
	if countLog2 < minCountLog2 || countLog2 > maxCountLog2 {
		return false
	}

	salt := stored[4:12]
	if len(salt) != 8 {
		return false
	}

	digest := md5.Sum([]byte(salt + password))
	for i := 0; i < 1<<uint(countLog2); i++ {
		digest = md5.Sum(append(digest[:], password...))
	}

	computed := stored[:12] + encode64(digest[:], md5.Size)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}

// encode64 implements phpass's 3-bytes-to-4-chars packing over itoa64.
func encode64(src []byte, count int) string {
	var out strings.Builder
	i := 0
	for i < count {
		value := uint32(src[i])
		i++
		out.WriteByte(itoa64[value&0x3f])
		if i < count {
			value |= uint32(src[i]) << 8
		}
		out.WriteByte(itoa64[(value>>6)&0x3f])
		if i >= count {
			break
		}
		i++
		if i < count {
			value |= uint32(src[i]) << 16
		}
		out.WriteByte(itoa64[(value>>12)&0x3f])
		if i >= count {
			break
		}
		i++
		out.WriteByte(itoa64[(value>>18)&0x3f])
	}
	return out.String()
}
