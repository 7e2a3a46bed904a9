package registry

// Merge helpers. Each one only adds information: a value already set is never
// overwritten or cleared, so re-running a pass yields the same entity.

// SetString sets *dst to v when *dst is empty. It reports whether *dst changed.
func SetString(dst *string, v string) bool {
	if *dst != "" || v == "" {
		return false
	}
	*dst = v
	return true
}

// SetPtr sets *dst to v when *dst is nil.
func SetPtr[T any](dst **T, v *T) bool {
	if *dst != nil || v == nil {
		return false
	}
	*dst = v
	return true
}

// Facet returns the optional struct at *dst, allocating it when nil.
func Facet[T any](dst **T) *T {
	if *dst == nil {
		*dst = new(T)
	}
	return *dst
}

// AppendUnique appends the values of vals missing from dst, keeping
// first-seen order.
func AppendUnique[T comparable](dst []T, vals ...T) []T {
	if len(vals) == 0 {
		return dst
	}
	seen := make(map[T]struct{}, len(dst)+len(vals))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// Unique returns vals with duplicates removed, keeping first-seen order.
func Unique[T comparable](vals []T) []T {
	return AppendUnique[T](nil, vals...)
}

// Upsert merges v into the element of dst with the same key, or appends it.
func Upsert[T any, K comparable](dst []T, v T, key func(T) K, merge func(existing *T, v T)) []T {
	k := key(v)
	for i := range dst {
		if key(dst[i]) == k {
			merge(&dst[i], v)
			return dst
		}
	}
	return append(dst, v)
}
