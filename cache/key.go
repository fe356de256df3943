package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Turn is one conversation turn of the prompt sent to the model.
type Turn struct {
	Role    string
	Content string
}

// Key identifies a completion request for caching. Two keys are equal iff
// every field is equal, with turns compared in order. The sampling parameters
// are part of the key because they change what the model returns.
type Key struct {
	Turns       []Turn
	Model       string
	Temperature float64
	MaxTokens   int
}

// canonical returns an injective string encoding of the key. Every
// variable-length field is length-prefixed, so two distinct keys can never
// produce the same encoding. The encoding itself is used as the store key:
// equality is structural and there is no hash that could collide.
func (k Key) canonical() string {
	var b strings.Builder
	size := len(k.Model) + 48
	for _, t := range k.Turns {
		size += len(t.Role) + len(t.Content) + 24
	}
	b.Grow(size)

	b.WriteString("m=")
	writeField(&b, k.Model)
	b.WriteString("|t=")
	b.WriteString(strconv.FormatFloat(k.Temperature, 'g', -1, 64))
	b.WriteString("|x=")
	b.WriteString(strconv.Itoa(k.MaxTokens))
	for _, t := range k.Turns {
		b.WriteString("|r=")
		writeField(&b, t.Role)
		b.WriteString("|c=")
		writeField(&b, t.Content)
	}
	return b.String()
}

func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(":")
	b.WriteString(s)
}

// Fingerprint returns a short sha256 digest of the key for log output.
// It is never used for equality.
func (k Key) Fingerprint() string {
	return fingerprintOf(k.canonical())
}

func fingerprintOf(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:8])
}
