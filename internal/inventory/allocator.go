package inventory

// nextAvailable returns the smallest positive lot number absent from used.
// Gaps left by out-of-band edits are reused before appending past the
// current maximum.
func nextAvailable(used map[int]struct{}) int {
	candidate := 1
	for {
		if _, taken := used[candidate]; !taken {
			return candidate
		}
		candidate++
	}
}

// allocateBatch chooses up to count fresh lot numbers against used, never
// exceeding capacity. The returned slice is ordered and duplicate-free; it is
// shorter than count when the block runs out of room mid-batch. The used set
// is not mutated.
func allocateBatch(used map[int]struct{}, count, capacity int) []int {
	if count <= 0 || capacity <= 0 {
		return nil
	}

	taken := make(map[int]struct{}, len(used)+count)
	for number := range used {
		taken[number] = struct{}{}
	}

	allocated := make([]int, 0, count)
	for len(allocated) < count {
		next := nextAvailable(taken)
		if next > capacity {
			break
		}
		allocated = append(allocated, next)
		taken[next] = struct{}{}
	}
	return allocated
}
