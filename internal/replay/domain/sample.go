package replay

import (
	"errors"
	"math"
	"sort"
)

// ErrInvalidDensity rejects a non-positive sampling target. This is a caller
// bug, not a data condition.
var ErrInvalidDensity = errors.New("replay: target per day must be at least 1")

// Sample reduces a reconstructed sequence to at most targetPerDay snapshots
// per calendar day. Days are the literal date portion of the stored
// timestamp, compared as a substring with no timezone conversion. A day at
// or under the target is kept whole; larger days keep the item at
// floor(i*step) for step = count/target. The selection is deterministic and
// the combined result is re-sorted ascending by timestamp.
func Sample(seq []ReconstructedSnapshot, targetPerDay int) ([]ReconstructedSnapshot, error) {
	if targetPerDay < 1 {
		return nil, ErrInvalidDensity
	}
	if len(seq) == 0 {
		return []ReconstructedSnapshot{}, nil
	}

	buckets := make(map[string][]ReconstructedSnapshot)
	days := make([]string, 0)
	for _, snapshot := range seq {
		day := dayKey(snapshot.WakeRoundStart)
		if _, seen := buckets[day]; !seen {
			days = append(days, day)
		}
		buckets[day] = append(buckets[day], snapshot)
	}

	sampled := make([]ReconstructedSnapshot, 0, len(seq))
	for _, day := range days {
		bucket := buckets[day]
		if len(bucket) <= targetPerDay {
			sampled = append(sampled, bucket...)
			continue
		}
		step := float64(len(bucket)) / float64(targetPerDay)
		for i := 0; i < targetPerDay; i++ {
			sampled = append(sampled, bucket[int(math.Floor(float64(i)*step))])
		}
	}

	sort.SliceStable(sampled, func(i, j int) bool {
		return sampled[i].WakeRoundStart < sampled[j].WakeRoundStart
	})
	return sampled, nil
}

func dayKey(timestamp string) string {
	if len(timestamp) < 10 {
		return timestamp
	}
	return timestamp[:10]
}
