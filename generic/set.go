package generic

type Set[T comparable] interface {
	Add(item T) bool
	Contains(items ...T) bool
}

func NewSet[T comparable](items ...T) Set[T] {
	res := make(set[T])
	for _, item := range items {
		res.Add(item)
	}
	return &res
}

type set[T comparable] map[T]Void

func (s *set[T]) Add(item T) bool {
	_, found := (*s)[item]
	if found {
		return false
	}
	(*s)[item] = NewVoid()
	return true
}

func (s *set[T]) Contains(items ...T) bool {
	for _, item := range items {
		_, found := (*s)[item]
		if !found {
			return false
		}
	}
	return true
}

// Unique returns items with duplicates removed, keeping the first occurrence of each.
func Unique[T comparable](items []T) []T {
	seen := NewSet[T]()
	res := make([]T, 0, len(items))
	for _, item := range items {
		if seen.Add(item) {
			res = append(res, item)
		}
	}
	return res
}
