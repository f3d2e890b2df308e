package differenceutil

import "sort"

// DifferenceAndIntersectionStrings  O(len(src) + len(des)), every result is sorted.
func DifferenceAndIntersectionStrings(src, des []string) (onlySrc, intersection, onlyDes []string) {
	identity := func(s string) string { return s }
	return DifferenceAndIntersection(src, des, identity, identity)
}

// DifferenceAndIntersection compares src and des by key, duplicated keys count once.
func DifferenceAndIntersection[S, D any](src []S, des []D, srcKey func(S) string, desKey func(D) string) (onlySrc, intersection, onlyDes []string) {
	m := make(map[string]uint8, len(src)+len(des))
	for _, s := range src {
		m[srcKey(s)] |= 1 << 0
	}
	for _, d := range des {
		m[desKey(d)] |= 1 << 1
	}

	for k, v := range m {
		switch v {
		case 0b11:
			intersection = append(intersection, k)
		case 0b01:
			onlySrc = append(onlySrc, k)
		case 0b10:
			onlyDes = append(onlyDes, k)
		}
	}
	sort.Strings(onlySrc)
	sort.Strings(intersection)
	sort.Strings(onlyDes)
	return
}
