package utils

// Unique returns the elements of items with duplicates removed, preserving order. By default the first
// occurrence of each element keeps its position; with lifo set, the last occurrence does instead.
func Unique[T comparable](items []T, lifo bool) []T {
	seen := make(map[T]struct{}, len(items))
	if !lifo {
		unique := make([]T, 0, len(items))
		for _, item := range items {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			unique = append(unique, item)
		}
		return unique
	}
	// LIFO: scan from the back keeping last occurrences, then restore the original direction.
	reversed := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if _, dup := seen[items[i]]; dup {
			continue
		}
		seen[items[i]] = struct{}{}
		reversed = append(reversed, items[i])
	}
	unique := make([]T, len(reversed))
	for i, item := range reversed {
		unique[len(reversed)-1-i] = item
	}
	return unique
}
