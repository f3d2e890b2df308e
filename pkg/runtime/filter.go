package runtime

import (
	"sort"
	"strings"

	"emssimulate/pkg/runtime/constant"
	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
)

// Labeled is the view of a point used by list filters.
type Labeled interface {
	Code() string
	Name() string
	Kind() constant.PointKind
	Slave() int
}

type LessFunc[T any] func(d1, d2 T) bool

type typeSorter[T any] struct {
	ds        []T
	lessFuncs []LessFunc[T]
}

func By[T any](less ...LessFunc[T]) *typeSorter[T] {
	return &typeSorter[T]{
		lessFuncs: less,
	}
}

func (ms *typeSorter[T]) Sort(ds []T) {
	ms.ds = ds
	sort.Sort(ms)
}

func (ms *typeSorter[T]) Len() int {
	return len(ms.ds)
}

func (ms *typeSorter[T]) Swap(i, j int) {
	ms.ds[i], ms.ds[j] = ms.ds[j], ms.ds[i]
}

func (ms *typeSorter[T]) Less(i, j int) bool {
	return ms.less(ms.ds[i], ms.ds[j])
}

func (ms *typeSorter[T]) less(p, q T) bool {
	// Try all but the last comparison.
	var k int
	for k = 0; k < len(ms.lessFuncs)-1; k++ {
		less := ms.lessFuncs[k]
		switch {
		case less(p, q):
			return true
		case less(q, p):
			return false
		}
	}
	return ms.lessFuncs[k](p, q)
}

// Insert keeps ds ordered by the sorter while appending d.
func (ms *typeSorter[T]) Insert(ds []T, d T) []T {
	i := sort.Search(len(ds), func(i int) bool { return ms.less(d, ds[i]) })
	ds = append(ds, d)
	copy(ds[i+1:], ds[i:])
	ds[i] = d
	return ds
}

type NameFilterFunc struct {
	Eq         string
	In         []string
	Contains   string
	StartsWith string
	EndsWith   string
}

type ChannelFilter struct {
	Name         interface{}
	ID           string
	ProtocolType string
}

type PointFilter struct {
	Name    interface{}
	Code    string
	Kind    string
	SlaveID *int
}

type Predicate[T any] func(d T) bool

// Match reports whether d satisfies every predicate.
func Match[T any](d T, predicates []Predicate[T]) bool {
	for _, p := range predicates {
		if !p(d) {
			return false
		}
	}
	return true
}

func ParseChannelFilter(filter *ChannelFilter) []Predicate[*Channel] {
	predicates := make([]Predicate[*Channel], 0)
	if filter == nil {
		return predicates
	}

	// id
	if len(filter.ID) > 0 {
		predicates = append(predicates, func(c *Channel) bool {
			return filter.ID == c.GetID()
		})
	}

	// protocol
	if len(filter.ProtocolType) > 0 {
		predicates = append(predicates, func(c *Channel) bool {
			return strings.EqualFold(filter.ProtocolType, c.ProtocolType.String())
		})
	}

	for _, match := range parseNameFilter(filter.Name) {
		m := match
		predicates = append(predicates, func(c *Channel) bool {
			return m(c.GetName())
		})
	}
	return predicates
}

func ParsePointFilter(filter *PointFilter) []Predicate[Labeled] {
	predicates := make([]Predicate[Labeled], 0)
	if filter == nil {
		return predicates
	}

	if len(filter.Code) > 0 {
		predicates = append(predicates, func(p Labeled) bool {
			return filter.Code == p.Code()
		})
	}

	if len(filter.Kind) > 0 {
		kind, ok := constant.StringToPointKind[strings.ToLower(filter.Kind)]
		predicates = append(predicates, func(p Labeled) bool {
			return ok && kind == p.Kind()
		})
	}

	if filter.SlaveID != nil {
		slave := *filter.SlaveID
		predicates = append(predicates, func(p Labeled) bool {
			return slave == p.Slave()
		})
	}

	for _, match := range parseNameFilter(filter.Name) {
		m := match
		predicates = append(predicates, func(p Labeled) bool {
			return m(p.Name())
		})
	}
	return predicates
}

func parseNameFilter(name interface{}) []func(string) bool {
	matchers := make([]func(string) bool, 0)
	if name == nil {
		return matchers
	}

	if s, ok := name.(string); ok {
		if len(s) > 0 {
			matchers = append(matchers, func(n string) bool { return s == n })
		}
		return matchers
	}

	var ff NameFilterFunc
	if err := mapstructure.Decode(name, &ff); err != nil {
		klog.V(3).InfoS("Failed to parse filter.name", "err", err)
		return matchers
	}
	// eq
	if len(ff.Eq) > 0 {
		matchers = append(matchers, func(n string) bool { return ff.Eq == n })
	}
	// in
	if len(ff.In) > 0 {
		matchers = append(matchers, func(n string) bool {
			for _, name := range ff.In {
				if name == n {
					return true
				}
			}
			return false
		})
	}
	// contains
	if len(ff.Contains) > 0 {
		matchers = append(matchers, func(n string) bool { return strings.Contains(n, ff.Contains) })
	}
	// startsWith
	if len(ff.StartsWith) > 0 {
		matchers = append(matchers, func(n string) bool { return strings.HasPrefix(n, strings.TrimSpace(ff.StartsWith)) })
	}
	// endsWith
	if len(ff.EndsWith) > 0 {
		matchers = append(matchers, func(n string) bool { return strings.HasSuffix(n, strings.TrimSpace(ff.EndsWith)) })
	}
	return matchers
}
