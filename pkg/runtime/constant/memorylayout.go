package constant

// MemoryLayout byte order of a multi byte value, A being the most significant byte.
type MemoryLayout byte

const (
	DCBA MemoryLayout = iota // little-endian
	CDAB                     // little-endian, bytes swapped within each word
	BADC                     // big-endian, bytes swapped within each word
	ABCD                     // big-endian
)

var memoryLayoutNames = newEnumNames("memory layout", map[MemoryLayout]string{
	DCBA: "DCBA",
	CDAB: "CDAB",
	BADC: "BADC",
	ABCD: "ABCD",
})

func (ml MemoryLayout) MarshalJSON() ([]byte, error) { return memoryLayoutNames.marshal(ml) }

func (ml *MemoryLayout) UnmarshalJSON(bytes []byte) error {
	return memoryLayoutNames.unmarshal(bytes, ml)
}

func (ml MemoryLayout) String() string { return memoryLayoutNames.names[ml] }
