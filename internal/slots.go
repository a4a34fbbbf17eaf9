package internal

// WeightedSlots returns a slot table in which index i of weights occupies
// weights[i] consecutive slots. Weights below 1 occupy no slot.
func WeightedSlots(weights []int) []int {
	total := 0
	for _, w := range weights {
		total += max(w, 0)
	}

	slots := make([]int, 0, total)
	for i, w := range weights {
		for range w {
			slots = append(slots, i)
		}
	}
	return slots
}

// Jump maps hash to a bucket in [0, buckets) with Google's Jump consistent
// hash (https://arxiv.org/abs/1406.2294). Growing buckets from n to n+1 moves
// only 1/(n+1) of the hashes, all of them to the new bucket.
func Jump(hash uint64, buckets int) int {
	if buckets <= 0 {
		return 0
	}

	b, j := int64(-1), int64(0)
	for j < int64(buckets) {
		b = j
		hash = hash*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(1<<31) / float64((hash>>33)+1)))
	}
	return int(b)
}
