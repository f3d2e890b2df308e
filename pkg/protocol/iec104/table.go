package iec104

import (
	"sort"
	"strconv"
	"sync"

	"emssimulate/pkg/point"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

// 信息体地址按点类型区分, 遥测与遥信可共用同一地址
type key struct {
	kind constant.PointKind
	ioa  uint32
}

// IOA information object address of p.
func IOA(p point.Point) (uint32, error) {
	v, err := strconv.ParseUint(p.Base().NativeAddress(), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(constant.ErrAddressFormat, "point %s", p.Code())
	}
	return uint32(v), nil
}

// Table raw values of the points served or mirrored by a handler, keyed by type and
// information object address.
type Table struct {
	mu     sync.RWMutex
	points map[key]point.Point
	values map[key]float64
}

func NewTable() *Table {
	return &Table{
		points: make(map[key]point.Point),
		values: make(map[key]float64),
	}
}

// Add registers p with its current raw value. Re-adding a point keeps the value.
func (t *Table) Add(p point.Point) error {
	ioa, err := IOA(p)
	if err != nil {
		return err
	}
	k := key{kind: p.Kind(), ioa: ioa}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.points[k]; ok && old.Code() != p.Code() {
		return errors.Errorf("%s address %d already taken by %s", p.Kind(), ioa, old.Code())
	}
	t.points[k] = p
	if _, ok := t.values[k]; !ok {
		t.values[k] = p.Base().RawValue()
	}
	return nil
}

func (t *Table) Remove(p point.Point) {
	ioa, err := IOA(p)
	if err != nil {
		return
	}
	k := key{kind: p.Kind(), ioa: ioa}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.points[k]; ok && old.Code() == p.Code() {
		delete(t.points, k)
		delete(t.values, k)
	}
}

func (t *Table) Lookup(kind constant.PointKind, ioa uint32) (point.Point, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.points[key{kind: kind, ioa: ioa}]
	return p, ok
}

// Value raw value held for p.
func (t *Table) Value(p point.Point) (float64, bool, error) {
	ioa, err := IOA(p)
	if err != nil {
		return 0, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[key{kind: p.Kind(), ioa: ioa}]
	return v, ok, nil
}

// Set stores a raw value for the point at kind/ioa and mirrors it into the point.
func (t *Table) Set(kind constant.PointKind, ioa uint32, raw float64) (point.Point, bool) {
	k := key{kind: kind, ioa: ioa}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.points[k]
	if !ok {
		return nil, false
	}
	t.values[k] = raw
	p.Base().SetRawValue(raw)
	return p, true
}

// Entry a point with its address and held raw value.
type Entry struct {
	Point point.Point
	IOA   uint32
	Raw   float64
}

// Entries of kind ordered by address.
func (t *Table) Entries(kind constant.PointKind) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make([]Entry, 0)
	for k, p := range t.points {
		if k.kind == kind {
			entries = append(entries, Entry{Point: p, IOA: k.ioa, Raw: t.values[k]})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].IOA < entries[j].IOA })
	return entries
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}
