package badger

// Key prefixes for different data types
const (
	entryPrefix  = "entry:"
	dimensionKey = "meta:dimension"
)

// makeEntryKey generates a key for an index entry by chunk id.
// Format: entry:<id>
func makeEntryKey(id string) []byte {
	buf := make([]byte, len(entryPrefix)+len(id))
	offset := copy(buf, entryPrefix)
	copy(buf[offset:], id)
	return buf
}

// entryIDFromKey strips the entry prefix from key.
func entryIDFromKey(key []byte) string {
	return string(key[len(entryPrefix):])
}

// nextKey returns the smallest key sorting after key.
func nextKey(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}
