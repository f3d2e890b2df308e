package constant

// DataType go type a decoded register value fits into.
type DataType int8

const (
	BOOL DataType = iota
	INT8
	UINT8
	INT16
	UINT16
	INT32
	UINT32
	INT64
	UINT64
	FLOAT32
	FLOAT64
)

var dataTypeNames = newEnumNames("data type", map[DataType]string{
	BOOL:    "bool",
	INT8:    "int8",
	UINT8:   "uint8",
	INT16:   "int16",
	UINT16:  "uint16",
	INT32:   "int32",
	UINT32:  "uint32",
	INT64:   "int64",
	UINT64:  "uint64",
	FLOAT32: "float32",
	FLOAT64: "float64",
})

func (dt DataType) String() string { return dataTypeNames.names[dt] }

func (dt DataType) MarshalJSON() ([]byte, error) { return dataTypeNames.marshal(dt) }

func (dt *DataType) UnmarshalJSON(bytes []byte) error { return dataTypeNames.unmarshal(bytes, dt) }
