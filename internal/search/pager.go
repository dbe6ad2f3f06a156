// Package search holds search results and slices them into fixed-size pages.
package search

// DefaultPageSize is the number of results shown per page.
const DefaultPageSize = 5

// Pager keeps an ordered result set and a 1-based current page. Navigation
// past either end is a no-op.
type Pager[T any] struct {
	items []T
	page  int
	size  int
}

func NewPager[T any](size int) *Pager[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager[T]{page: 1, size: size}
}

// Reset replaces the result set, keeping server order, and returns to page 1.
func (p *Pager[T]) Reset(items []T) {
	p.items = append([]T(nil), items...)
	p.page = 1
}

// Clear drops all results.
func (p *Pager[T]) Clear() { p.Reset(nil) }

func (p *Pager[T]) Len() int { return len(p.items) }

func (p *Pager[T]) PageSize() int { return p.size }

func (p *Pager[T]) Page() int { return p.page }

// TotalPages is ceil(n/size); zero when there are no results.
func (p *Pager[T]) TotalPages() int {
	return (len(p.items) + p.size - 1) / p.size
}

// Visible reports whether pagination controls should be shown.
func (p *Pager[T]) Visible() bool { return len(p.items) > 0 }

func (p *Pager[T]) HasNext() bool { return p.page < p.TotalPages() }

func (p *Pager[T]) HasPrev() bool { return p.page > 1 }

// Next advances one page; false when already on the last page.
func (p *Pager[T]) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.page++
	return true
}

// Prev goes back one page; false when already on page 1.
func (p *Pager[T]) Prev() bool {
	if !p.HasPrev() {
		return false
	}
	p.page--
	return true
}

// GoTo jumps to page n, clamped into [1, TotalPages].
func (p *Pager[T]) GoTo(n int) {
	total := p.TotalPages()
	if n > total {
		n = total
	}
	if n < 1 {
		n = 1
	}
	p.page = n
}

// Current returns the window of results on the current page.
func (p *Pager[T]) Current() []T {
	start, end := p.Bounds()
	if start == end {
		return nil
	}
	return append([]T(nil), p.items[start:end]...)
}

// Bounds returns the half-open index range of the current page.
func (p *Pager[T]) Bounds() (int, int) {
	start := (p.page - 1) * p.size
	if start > len(p.items) {
		start = len(p.items)
	}
	end := start + p.size
	if end > len(p.items) {
		end = len(p.items)
	}
	return start, end
}

// Find returns the result matching pred anywhere in the set.
func (p *Pager[T]) Find(pred func(T) bool) (T, bool) {
	for _, it := range p.items {
		if pred(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}
