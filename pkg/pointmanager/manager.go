package pointmanager

import (
	"sync"

	"emssimulate/pkg/point"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
)

const (
	MinSlave = 0
	MaxSlave = 255
)

// SlavePoints points of one slave grouped by kind, in insertion order.
type SlavePoints struct {
	Measurements []point.Point
	Statuses     []point.Point
	Controls     []point.Point
	Setpoints    []point.Point
}

// PointManager owns the points of one channel. All index mutations happen under a
// single write lock so that the kind index and the code index never diverge.
type PointManager struct {
	mu     sync.RWMutex
	kinds  map[constant.PointKind]map[int][]point.Point
	index  map[string]point.Point
	slaves sets.Set[int]
}

func New(slaves ...int) *PointManager {
	pm := &PointManager{
		kinds:  make(map[constant.PointKind]map[int][]point.Point, len(constant.PointKinds)),
		index:  make(map[string]point.Point),
		slaves: sets.New[int](slaves...),
	}
	for _, k := range constant.PointKinds {
		pm.kinds[k] = make(map[int][]point.Point)
	}
	return pm
}

// AddPoint rejects codes already used by a point of any kind.
func (pm *PointManager) AddPoint(p point.Point) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if err := pm.checkLocked(p); err != nil {
		return err
	}
	pm.insertLocked(p)
	return nil
}

// AddPoints registers a batch. Either every point is added or none.
func (pm *PointManager) AddPoints(ps []point.Point) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	seen := sets.New[string]()
	for _, p := range ps {
		if err := pm.checkLocked(p); err != nil {
			return err
		}
		if seen.Has(p.Code()) {
			return errors.Wrapf(constant.ErrDuplicateCode, "code %s", p.Code())
		}
		seen.Insert(p.Code())
	}
	for _, p := range ps {
		pm.insertLocked(p)
	}
	return nil
}

func (pm *PointManager) checkLocked(p point.Point) error {
	if _, ok := pm.index[p.Code()]; ok {
		return errors.Wrapf(constant.ErrDuplicateCode, "code %s", p.Code())
	}
	if p.Slave() < MinSlave || p.Slave() > MaxSlave {
		return errors.Wrapf(constant.ErrInvalidSlave, "slave %d", p.Slave())
	}
	if _, ok := pm.kinds[p.Kind()]; !ok {
		return errors.Wrapf(constant.ErrPointKind, "kind %d", p.Kind())
	}
	return nil
}

func (pm *PointManager) insertLocked(p point.Point) {
	slave := p.Slave()
	pm.kinds[p.Kind()][slave] = append(pm.kinds[p.Kind()][slave], p)
	pm.index[p.Code()] = p
	pm.slaves.Insert(slave)
}

func (pm *PointManager) removeLocked(p point.Point) {
	bySlave := pm.kinds[p.Kind()]
	ps := bySlave[p.Slave()]
	for i := range ps {
		if ps[i] == p {
			ps = append(ps[:i:i], ps[i+1:]...)
			break
		}
	}
	if len(ps) == 0 {
		delete(bySlave, p.Slave())
	} else {
		bySlave[p.Slave()] = ps
	}
	delete(pm.index, p.Code())
}

func (pm *PointManager) RemovePoint(code string) (point.Point, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, ok := pm.index[code]
	if !ok {
		return nil, errors.Wrapf(constant.ErrPointNotFound, "code %s", code)
	}
	pm.removeLocked(p)
	klog.V(3).InfoS("Removed point", "code", code)
	return p, nil
}

func (pm *PointManager) GetByCode(code string) (point.Point, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.index[code]
	return p, ok
}

func (pm *PointManager) GetBySlave(slave int) SlavePoints {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return SlavePoints{
		Measurements: copyPoints(pm.kinds[constant.Measurement][slave]),
		Statuses:     copyPoints(pm.kinds[constant.Status][slave]),
		Controls:     copyPoints(pm.kinds[constant.Control][slave]),
		Setpoints:    copyPoints(pm.kinds[constant.Setpoint][slave]),
	}
}

// GetByKind points of kind across all slaves, ordered by slave.
func (pm *PointManager) GetByKind(kind constant.PointKind) []point.Point {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	ret := make([]point.Point, 0)
	bySlave := pm.kinds[kind]
	for _, slave := range sets.List(pm.slaves) {
		ret = append(ret, bySlave[slave]...)
	}
	return ret
}

// All points ordered by slave, then kind, then insertion.
func (pm *PointManager) All() []point.Point {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	ret := make([]point.Point, 0, len(pm.index))
	for _, slave := range sets.List(pm.slaves) {
		for _, k := range constant.PointKinds {
			ret = append(ret, pm.kinds[k][slave]...)
		}
	}
	return ret
}

// RenameCode swaps the code index entry in the same critical section as the point
// itself, readers observe either the old or the new code, never both or neither.
func (pm *PointManager) RenameCode(oldCode, newCode string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, ok := pm.index[oldCode]
	if !ok {
		return errors.Wrapf(constant.ErrPointNotFound, "code %s", oldCode)
	}
	if oldCode == newCode {
		return nil
	}
	if _, ok := pm.index[newCode]; ok {
		return errors.Wrapf(constant.ErrDuplicateCode, "code %s", newCode)
	}
	delete(pm.index, oldCode)
	p.Base().Rename(newCode)
	pm.index[newCode] = p
	klog.V(3).InfoS("Renamed point", "from", oldCode, "to", newCode)
	return nil
}

// MoveSlave reassigns a point to another slave.
func (pm *PointManager) MoveSlave(code string, slave int) error {
	if slave < MinSlave || slave > MaxSlave {
		return errors.Wrapf(constant.ErrInvalidSlave, "slave %d", slave)
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, ok := pm.index[code]
	if !ok {
		return errors.Wrapf(constant.ErrPointNotFound, "code %s", code)
	}
	if p.Slave() == slave {
		return nil
	}
	pm.removeLocked(p)
	p.Base().MoveSlave(slave)
	pm.insertLocked(p)
	return nil
}

// ResetAllValues zeroes every raw value. Point io locks are taken after the manager
// lock is released, the same order metadata edits use.
func (pm *PointManager) ResetAllValues() {
	pm.mu.RLock()
	ps := make([]point.Point, 0, len(pm.index))
	for _, p := range pm.index {
		ps = append(ps, p)
	}
	pm.mu.RUnlock()
	for _, p := range ps {
		info := p.Base()
		_ = info.Exclusive(func() error {
			info.SetRawValue(0)
			return nil
		})
	}
}

func (pm *PointManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.index)
}

// Slaves sorted slave addresses, explicit ones included even without points.
func (pm *PointManager) Slaves() []int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return sets.List(pm.slaves)
}

func (pm *PointManager) HasSlave(slave int) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.slaves.Has(slave)
}

// AddSlave registers an empty slave, 1..255.
func (pm *PointManager) AddSlave(slave int) error {
	if slave < 1 || slave > MaxSlave {
		return errors.Wrapf(constant.ErrInvalidSlave, "slave %d", slave)
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.slaves.Has(slave) {
		return errors.Wrapf(constant.ErrDuplicateSlave, "slave %d", slave)
	}
	pm.slaves.Insert(slave)
	klog.V(3).InfoS("Added slave", "slave", slave)
	return nil
}

// Replace swaps the whole point set in one critical section, readers see either the
// old points or the new ones. On error nothing changes.
func (pm *PointManager) Replace(ps []point.Point, slaves ...int) error {
	next := New(slaves...)
	if err := next.AddPoints(ps); err != nil {
		return err
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.kinds, pm.index, pm.slaves = next.kinds, next.index, next.slaves
	return nil
}

func copyPoints(ps []point.Point) []point.Point {
	ret := make([]point.Point, len(ps))
	copy(ret, ps)
	return ret
}
