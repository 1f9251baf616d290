package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainMessage = "tandem/message/v1"
	DomainTrace   = "tandem/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MessageID computes the content-addressed id of a message. Two messages
// with the same creator, counters and operation share an id, which lets the
// trace store deduplicate redelivered copies.
func MessageID(m Message) (string, error) {
	canonical, err := MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("MessageID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMessage, canonical), nil
}

// MustMessageID is like MessageID but panics on error.
// Only messages holding a nil Operation fail to marshal.
func MustMessageID(m Message) string {
	id, err := MessageID(m)
	if err != nil {
		panic(err)
	}
	return id
}

// TraceDigest hashes a canonical trace so two runs can be compared cheaply.
func TraceDigest(canonicalTrace []byte) string {
	return hashWithDomain(DomainTrace, canonicalTrace)
}
