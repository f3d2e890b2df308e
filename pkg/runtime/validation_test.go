package runtime

import (
	"testing"

	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
)

func TestValidatePointRecord(t *testing.T) {
	zero := 0.0
	record := &PointRecord{Kind: constant.Measurement, Code: "YC1", SlaveID: 1, Address: "0x10"}
	assert.Empty(t, ValidatePointRecord(record, constant.FamilyRegister, nil))

	record = &PointRecord{Kind: constant.Setpoint, SlaveID: 300, Address: "0x12345", Scale: &zero}
	errs := ValidatePointRecord(record, constant.FamilyRegister, nil)
	assert.Len(t, errs, 3)

	record = &PointRecord{Kind: constant.Status, Code: "YX1", Address: "16385"}
	assert.Empty(t, ValidatePointRecord(record, constant.FamilyTelecontrol, nil))
}

func TestValidateChannel(t *testing.T) {
	assert.Empty(t, ValidateChannel(&Channel{ObjectMeta: ObjectMeta{Name: "c"}, ProtocolType: constant.Iec104Server}))
	assert.Len(t, ValidateChannel(&Channel{ProtocolType: constant.ProtocolType(200)}), 2)
}
