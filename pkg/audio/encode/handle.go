// ABOUTME: Exclusive ownership wrapper for native resources
// ABOUTME: Each handle is independently empty or owned and frees exactly once
package encode

// handle owns one native resource. The zero value is empty.
type handle[T any] struct {
	v    T
	free func(T)
	ok   bool
}

// own takes ownership of v, releasing whatever the handle held before
func (h *handle[T]) own(v T, free func(T)) {
	h.release()
	h.v, h.free, h.ok = v, free, true
}

func (h *handle[T]) get() T { return h.v }

func (h *handle[T]) valid() bool { return h.ok }

// release frees the resource if one is owned and leaves the handle empty
func (h *handle[T]) release() {
	if !h.ok {
		return
	}
	free := h.free
	v := h.v
	var zero T
	h.v, h.free, h.ok = zero, nil, false
	if free != nil {
		free(v)
	}
}
