package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNode    = "sundance/node/v1"
	DomainContext = "sundance/context/v1"
	DomainRun     = "sundance/run/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NodeHash computes the content-addressed identity of an expression node
// from its canonical description. Children are referenced by their own
// hashes, so equal hashes mean structurally equal subtrees.
func NodeHash(desc IRObject) (string, error) {
	canonical, err := MarshalCanonical(desc)
	if err != nil {
		return "", fmt.Errorf("NodeHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNode, canonical), nil
}

// ContextHash computes a stable identity for an evaluation context bound
// to a root expression.
func ContextHash(label string, maxOrder int, rootHash string) (string, error) {
	obj := IRObject{
		"label":     IRString(label),
		"max_order": IRInt(maxOrder),
		"root":      IRString(rootHash),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ContextHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainContext, canonical), nil
}

// RunHash computes the identity of an evaluation run's results so that
// replays of the same batch can be compared byte-for-byte.
func RunHash(contextHash string, results IRArray, seq int64) (string, error) {
	obj := IRObject{
		"context": IRString(contextHash),
		"results": results,
		"seq":     IRInt(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RunHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRun, canonical), nil
}

// MustNodeHash is like NodeHash but panics on error.
// Use only when the description is built from IR types (never floats).
func MustNodeHash(desc IRObject) string {
	h, err := NodeHash(desc)
	if err != nil {
		panic(err)
	}
	return h
}

// MustContextHash is like ContextHash but panics on error.
func MustContextHash(label string, maxOrder int, rootHash string) string {
	h, err := ContextHash(label, maxOrder, rootHash)
	if err != nil {
		panic(err)
	}
	return h
}
