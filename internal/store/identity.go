package store

import (
	"strings"
	"unicode"
)

// Identity is the stable key for a binding: normalized character name plus
// class, independent of any live window handle. Bindings re-attach to the
// right window across restarts and relogs through this key.
type Identity string

// MakeIdentity derives the identity key from a character's display name and
// class: lowercase-alnum(name) + "_" + lowercase-alnum(class).
//
// Two distinct display names that normalize identically collide and share
// one binding (first writer wins). This merging is load-bearing for
// case-only name variants; do not change it without a product decision.
func MakeIdentity(characterName, className string) Identity {
	return Identity(normalizeAlnum(characterName) + "_" + normalizeAlnum(className))
}

// normalizeAlnum lowercases s and strips everything that is not a letter
// or digit.
func normalizeAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
