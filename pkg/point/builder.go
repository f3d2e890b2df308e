package point

import (
	"emssimulate/pkg/resolver"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

type builder func(record *runtime.PointRecord, info *Info) Point

var builders = map[constant.PointKind]builder{
	constant.Measurement: func(record *runtime.PointRecord, info *Info) Point {
		return &Measurement{Info: info, Transform: newTransform(record)}
	},
	constant.Setpoint: func(record *runtime.PointRecord, info *Info) Point {
		return &Setpoint{Info: info, Transform: newTransform(record)}
	},
	constant.Status: func(record *runtime.PointRecord, info *Info) Point {
		return &Status{Info: info, BitOffset: record.BitOffset}
	},
	constant.Control: func(record *runtime.PointRecord, info *Info) Point {
		c := &Control{Info: info, BitOffset: record.BitOffset, CommandType: record.CommandType}
		c.SetRelatedStatus(record.RelatedStatus)
		return c
	},
}

// New builds a typed point from a raw record, resolving its address for family.
// Unknown decode codes fall back to the default format.
func New(record *runtime.PointRecord, family constant.ProtocolFamily) (Point, error) {
	build, ok := builders[record.Kind]
	if !ok {
		return nil, errors.Wrapf(constant.ErrPointKind, "kind %d", record.Kind)
	}
	if len(record.Code) == 0 {
		return nil, errors.New("point code is required")
	}
	native, err := resolver.Resolve(family, record.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "point %s", record.Code)
	}
	return build(record, newInfo(record, native)), nil
}

// NewBatch builds every record, failing on the first invalid one.
func NewBatch(records []*runtime.PointRecord, family constant.ProtocolFamily) ([]Point, error) {
	points := make([]Point, 0, len(records))
	for _, r := range records {
		p, err := New(r, family)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}
