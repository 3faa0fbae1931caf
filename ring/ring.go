// Package ring deterministically places session keys on workers.
//
// Select is a cheap, dependency-free stand-in for a consistent-hash ring:
// it hashes the key with an FNV-1a-style rolling hash and indexes into the
// candidate list. Placement is stable only while the candidate ordering is
// stable, so callers must supply candidates in a canonical order (the
// registry's iteration order). Arbitrary reordering of the list moves keys;
// that is a known limitation of the scheme, not a bug.
package ring

const fnvOffsetBasis uint32 = 2166136261

// Hash computes the 32-bit rolling hash of key used for placement. For each
// byte: hash ^= byte, then hash += (hash<<1) + (hash<<4) + (hash<<7) +
// (hash<<8) + (hash<<24), truncated to 32 bits at each step.
func Hash(key string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h += (h << 1) + (h << 4) + (h << 7) + (h << 8) + (h << 24)
	}
	return h
}

// Select maps key to one of the candidates. It is total and deterministic:
// the same key and the same candidate sequence always yield the same
// worker, with no tie-break ambiguity because list order is significant.
// Returns ("", false) when candidates is empty.
func Select(key string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	// The reference implementation runs the hash through a signed 32-bit
	// abs before the modulo; match it exactly so placements agree across
	// ports of this scheme.
	signed := int32(Hash(key))
	idx := int(signed)
	if idx < 0 {
		idx = -idx
	}
	return candidates[idx%len(candidates)], true
}
