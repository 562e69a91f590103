package mesh

// Hash16 computes the 16-bit rolling hash used throughout the wire
// protocol: node hashes, message-id hashes, and directed target hashes
// are all instances of this same function (spec §4.1). It must be
// computed identically on every node for cross-device interop, so it
// is never swapped for a general-purpose hash (e.g. xxhash or FNV)
// even though those would be cheaper to import.
func Hash16(s string) uint16 {
	var h uint32
	for _, r := range s {
		h = (h<<5 - h + uint32(r)) & 0xFFFF
	}
	return uint16(h)
}

// hashPrefix concatenates a fixed prefix with the 4-digit lowercase hex
// rendering of a 16-bit value (no further hashing), producing the
// uniform string key dedup.go uses for MessageId lookups (spec §4.2
// step 1).
func hashPrefix(prefix string, v uint16) string {
	return prefix + formatHex4(v)
}
