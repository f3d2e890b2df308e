package dlt645

import (
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"emssimulate/pkg/point"
	"emssimulate/pkg/resolver"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

// 数据标识 DI0..DI3
const identifierLength = 4

// Identifier wire order data identifier of p.
func Identifier(p point.Point) ([]byte, error) {
	di, err := resolver.Dlt645Bytes(p.Base().NativeAddress())
	if err != nil {
		return nil, err
	}
	if len(di) != identifierLength {
		return nil, errors.Wrapf(constant.ErrAddressFormat, "point %s data identifier must have %d bytes", p.Code(), identifierLength)
	}
	return di, nil
}

func identifierKey(di []byte) string {
	return strings.ToUpper(hex.EncodeToString(di))
}

// Table points of a meter keyed by data identifier.
type Table struct {
	mu     sync.RWMutex
	points map[string]point.Point
	values map[string]float64
}

func NewTable() *Table {
	return &Table{
		points: make(map[string]point.Point),
		values: make(map[string]float64),
	}
}

func (t *Table) Add(p point.Point) error {
	di, err := Identifier(p)
	if err != nil {
		return err
	}
	k := identifierKey(di)
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.points[k]; ok && old.Code() != p.Code() {
		return errors.Errorf("data identifier %s already taken by %s", k, old.Code())
	}
	t.points[k] = p
	if _, ok := t.values[k]; !ok {
		t.values[k] = p.Base().RawValue()
	}
	return nil
}

func (t *Table) Remove(p point.Point) {
	di, err := Identifier(p)
	if err != nil {
		return
	}
	k := identifierKey(di)
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.points[k]; ok && old.Code() == p.Code() {
		delete(t.points, k)
		delete(t.values, k)
	}
}

// Get raw value and point stored under di.
func (t *Table) Get(di []byte) (point.Point, float64, bool) {
	k := identifierKey(di)
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.points[k]
	if !ok {
		return nil, 0, false
	}
	return p, t.values[k], true
}

// Set stores raw under di and mirrors it into the point.
func (t *Table) Set(di []byte, raw float64) (point.Point, bool) {
	k := identifierKey(di)
	t.mu.Lock()
	p, ok := t.points[k]
	if ok {
		t.values[k] = raw
	}
	t.mu.Unlock()
	if ok {
		p.Base().SetRawValue(raw)
	}
	return p, ok
}

// Identifiers sorted keys, used for listing.
func (t *Table) Identifiers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.points))
	for k := range t.points {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}
