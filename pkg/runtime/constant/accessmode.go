package constant

type AccessMode int8

const (
	AccessModeReadOnly AccessMode = iota
	AccessModeReadWrite
)

var accessModeNames = newEnumNames("access mode", map[AccessMode]string{
	AccessModeReadOnly:  "r",
	AccessModeReadWrite: "rw",
})

func (am AccessMode) MarshalJSON() ([]byte, error) { return accessModeNames.marshal(am) }

func (am *AccessMode) UnmarshalJSON(bytes []byte) error { return accessModeNames.unmarshal(bytes, am) }

// PointKindAccessMode monitoring kinds are read-only on a client, commands are writable.
var PointKindAccessMode = map[PointKind]AccessMode{
	Measurement: AccessModeReadOnly,
	Status:      AccessModeReadOnly,
	Control:     AccessModeReadWrite,
	Setpoint:    AccessModeReadWrite,
}
