// Package intersect filters one list by membership in another.
package intersect

// Ordered returns the elements of seq that also appear in members, in seq order.
// Duplicates in seq are kept.
func Ordered[T comparable](members, seq []T) []T {
	set := make(map[T]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	out := make([]T, 0, len(seq))
	for _, v := range seq {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
