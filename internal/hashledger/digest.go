package hashledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Sentinel is the previous commitment of the first record in every chain.
const Sentinel = "0000000000000000000000000000000000000000000000000000000000000000"

// Algorithm names the digest used to compute commitments.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	BLAKE2b256 Algorithm = "blake2b-256"
	SHA3256    Algorithm = "sha3-256"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = SHA256

// ParseAlgorithm maps a configuration value onto an Algorithm.
// The empty string selects DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return DefaultAlgorithm, nil
	case SHA256, BLAKE2b256, SHA3256:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case BLAKE2b256:
		// New256 only fails for keys longer than 64 bytes.
		h, _ := blake2b.New256(nil)
		return h
	case SHA3256:
		return sha3.New256()
	default:
		return sha256.New()
	}
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	if a == "" {
		return string(DefaultAlgorithm)
	}
	return string(a)
}

// commit computes the hex-encoded digest binding payload to prev.
// The %v rendering of an int slice ("[1 2 3]") is unambiguous, and prev is
// always fixed-length hex, so distinct pairs never share an input.
func commit(a Algorithm, payload []int, prev string) string {
	h := a.newHash()
	fmt.Fprintf(h, "data:%v\nprevious_commitment:%s", payload, prev)
	return hex.EncodeToString(h.Sum(nil))
}
