package v1

// PointValue engineering value written to a point.
type PointValue struct {
	Value *float64 `json:"value" binding:"required"`
}

type PointLimits struct {
	MinLimit *float64 `json:"minLimit" binding:"required"`
	MaxLimit *float64 `json:"maxLimit" binding:"required"`
}

type Slave struct {
	SlaveID int `json:"slaveId" binding:"required,min=1,max=255"`
}
