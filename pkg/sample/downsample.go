package sample

// Downsample reduces results to at most maxPoints for display.
// Uses simple decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
func Downsample(dst []Result, results []Result, maxPoints int) []Result {
	if maxPoints <= 0 || len(results) <= maxPoints {
		if cap(dst) >= len(results) {
			dst = dst[:len(results)]
			copy(dst, results)
			return dst
		}
		out := make([]Result, len(results))
		copy(out, results)
		return out
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Result, 0, maxPoints)
	}

	step := float64(len(results)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(results) {
			dst = append(dst, results[idx])
		}
	}

	return dst
}
