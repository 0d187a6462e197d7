package engine

// DedupByKey keeps the first item for every distinct key, preserving input
// order. Items without a key are dropped and never mark a key as seen.
func DedupByKey[T any](items []T, key func(T) (string, bool)) []T {
	if items == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k, ok := key(item)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
