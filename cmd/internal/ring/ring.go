// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring implements a fixed-size history buffer that retains the
// most recently added values.
package ring

type Buffer[T any] struct {
	data []T
	next int // index of the next write
	full bool
}

func NewBuffer[T any](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

// Len returns the number of values held.
func (r *Buffer[T]) Len() int {
	if r.full {
		return len(r.data)
	}
	return r.next
}

// Size returns the capacity of the buffer.
func (r *Buffer[T]) Size() int {
	return len(r.data)
}

// Add appends values to the buffer, overwriting the oldest values
// when the buffer is full.
func (r *Buffer[T]) Add(v ...T) {
	if len(r.data) == 0 {
		return
	}
	for _, e := range v {
		r.data[r.next] = e
		r.next++
		if r.next == len(r.data) {
			r.next = 0
			r.full = true
		}
	}
}

// CopyTo copies the held values into dst from oldest to newest and
// returns the number of values copied. If dst is shorter than Len,
// the newest values are copied.
func (r *Buffer[T]) CopyTo(dst []T) int {
	n := r.Len()
	skip := max(n-len(dst), 0)
	start := skip
	if r.full {
		start = (r.next + skip) % len(r.data)
	}
	c := 0
	for c < n-skip {
		c += copy(dst[c:], r.data[start:min(len(r.data), start+n-skip-c)])
		start = 0
	}
	return c
}

// Last returns the most recently added value.
func (r *Buffer[T]) Last() (v T, ok bool) {
	if r.Len() == 0 {
		return v, false
	}
	i := r.next - 1
	if i < 0 {
		i = len(r.data) - 1
	}
	return r.data[i], true
}
