package blackboard

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

func pointerHash(ptr uintptr) string {
	return fmt.Sprintf("ptr:%x", ptr)
}

// structuralHash produces a best-effort content fingerprint for value
// types. It falls back to a per-call unique fingerprint (effectively
// disabling de-duplication) when the value cannot be marshaled, which is the safe
// direction: a failed fingerprint must never cause two genuinely distinct
// objects to collide.
func structuralHash(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("unhashable:%p", &value)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
