package runtime

import (
	"testing"

	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
)

type labeled struct {
	code  string
	name  string
	kind  constant.PointKind
	slave int
}

func (l labeled) Code() string             { return l.code }
func (l labeled) Name() string             { return l.name }
func (l labeled) Kind() constant.PointKind { return l.kind }
func (l labeled) Slave() int               { return l.slave }

func TestParsePointFilter(t *testing.T) {
	points := []Labeled{
		labeled{"YC1", "voltage a", constant.Measurement, 1},
		labeled{"YC2", "voltage b", constant.Measurement, 2},
		labeled{"YX1", "breaker", constant.Status, 1},
	}

	count := func(f *PointFilter) int {
		n := 0
		predicates := ParsePointFilter(f)
		for _, p := range points {
			if Match(p, predicates) {
				n++
			}
		}
		return n
	}

	slave := 1
	assert.Equal(t, 3, count(nil))
	assert.Equal(t, 2, count(&PointFilter{Kind: "measurement"}))
	assert.Equal(t, 2, count(&PointFilter{SlaveID: &slave}))
	assert.Equal(t, 1, count(&PointFilter{Code: "YX1"}))
	assert.Equal(t, 1, count(&PointFilter{Name: "breaker"}))
	assert.Equal(t, 2, count(&PointFilter{Name: map[string]interface{}{"startsWith": "voltage"}}))
	assert.Equal(t, 1, count(&PointFilter{Name: map[string]interface{}{"contains": "age", "endsWith": "b"}}))
	assert.Equal(t, 2, count(&PointFilter{Name: map[string]interface{}{"in": []string{"breaker", "voltage a"}}}))
	assert.Equal(t, 0, count(&PointFilter{Kind: "unknown"}))
}

func TestSorterInsert(t *testing.T) {
	sorter := By(func(a, b int) bool { return a < b })
	ds := make([]int, 0)
	for _, v := range []int{5, 1, 4, 2, 3} {
		ds = sorter.Insert(ds, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ds)

	byName := By(func(a, b Labeled) bool { return a.Slave() < b.Slave() }, func(a, b Labeled) bool { return a.Code() < b.Code() })
	ls := []Labeled{labeled{code: "b", slave: 2}, labeled{code: "b", slave: 1}, labeled{code: "a", slave: 2}}
	byName.Sort(ls)
	assert.Equal(t, []string{"b", "a", "b"}, []string{ls[0].Code(), ls[1].Code(), ls[2].Code()})
	assert.Equal(t, 1, ls[0].Slave())
}

func TestParseChannelFilter(t *testing.T) {
	ch := &Channel{ObjectMeta: ObjectMeta{Name: "pcs-01", ID: "c1"}, ProtocolType: constant.ModbusTcp}
	assert.True(t, Match(ch, ParseChannelFilter(&ChannelFilter{ID: "c1"})))
	assert.False(t, Match(ch, ParseChannelFilter(&ChannelFilter{ID: "c2"})))
	assert.True(t, Match(ch, ParseChannelFilter(&ChannelFilter{ProtocolType: ch.ProtocolType.String()})))
	assert.True(t, Match(ch, ParseChannelFilter(&ChannelFilter{Name: map[string]interface{}{"startsWith": "pcs"}})))
}
