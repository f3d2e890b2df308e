package runtime

// InGroupOf splits items into consecutive groups of at most length items.
func InGroupOf[T any](items []T, length int) [][]T {
	if length <= 0 || len(items) <= length {
		return [][]T{items}
	}

	var group int
	if len(items)%length == 0 {
		group = len(items) / length
	} else {
		group = (len(items) / length) + 1
	}
	groups := make([][]T, 0, group)

	for i := 0; i < group; i++ {
		start := i * length
		end := start + length
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}
