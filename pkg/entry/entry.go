package entry

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Size is the number of bytes an entry occupies on the media.
const Size = 16

// Entry is a fixed-width key-value pair stored in a hash bucket slot.
type Entry struct {
	Key   uint64
	Value uint64
}

// New constructs and returns a new Entry with the specified key and value.
func New(key uint64, value uint64) Entry {
	return Entry{key, value}
}

// Marshal serializes a given entry into a byte array.
func (entry Entry) Marshal() []byte {
	data := make([]byte, Size)
	entry.MarshalTo(data)
	return data
}

// MarshalTo writes the entry into the first Size bytes of data.
func (entry Entry) MarshalTo(data []byte) {
	binary.LittleEndian.PutUint64(data[0:8], entry.Key)
	binary.LittleEndian.PutUint64(data[8:16], entry.Value)
}

// UnmarshalEntry deserializes a byte array into an entry.
func UnmarshalEntry(data []byte) Entry {
	return Entry{
		Key:   binary.LittleEndian.Uint64(data[0:8]),
		Value: binary.LittleEndian.Uint64(data[8:16]),
	}
}

// Print writes the entry to the specified writer in the following format: (<key>, <value>)
func (entry Entry) Print(w io.Writer) {
	fmt.Fprintf(w, "(%d, %d), ", entry.Key, entry.Value)
}
