// ABOUTME: Tests for the native resource handle
// ABOUTME: Verifies single release and replacement semantics
package encode

import "testing"

func TestHandleReleasesOnce(t *testing.T) {
	freed := 0
	var h handle[int]
	if h.valid() {
		t.Fatal("zero handle should be empty")
	}
	h.release()

	h.own(7, func(int) { freed++ })
	if !h.valid() || h.get() != 7 {
		t.Fatalf("handle = %v/%v", h.valid(), h.get())
	}

	h.release()
	h.release()
	if freed != 1 {
		t.Errorf("freed %d times, want 1", freed)
	}
	if h.valid() {
		t.Error("handle still valid after release")
	}
}

func TestHandleOwnReplaces(t *testing.T) {
	var released []int
	free := func(v int) { released = append(released, v) }

	var h handle[int]
	h.own(1, free)
	h.own(2, free)
	h.release()

	if len(released) != 2 || released[0] != 1 || released[1] != 2 {
		t.Errorf("released = %v, want [1 2]", released)
	}
}
