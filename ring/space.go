package ring

// continuousFreeBytes computes how many bytes the writer may use
// contiguously starting at w without crossing the ring boundary or
// overrunning the reader, per spec.md §4.3.
func continuousFreeBytes(w, r, size, free uint64) uint64 {
	switch {
	case free == 0:
		return 0
	case w > r:
		cf := size - w
		if free < cf {
			return free
		}
		return cf
	case w < r:
		cf := r - w
		if free < cf {
			return free
		}
		return cf
	default: // w == r
		if free == size {
			return size - w
		}
		return 0
	}
}
