package network

import (
	"sort"
	"sync"
)

const (
	// recentRTTWindow is the number of round trips kept for the ping average
	recentRTTWindow = 10
)

// rttTracker keeps a window of recent round trip times in milliseconds.
type rttTracker struct {
	recentRTTs []int64
	ping       float64
	lock       sync.Mutex
}

// record adds a sample and returns the updated ping.
func (t *rttTracker) record(rtt int64) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.recentRTTs = append(t.recentRTTs, rtt)
	for len(t.recentRTTs) > recentRTTWindow {
		t.recentRTTs = t.recentRTTs[1:]
	}

	sample := removeOutlierRTTs(t.recentRTTs)
	ping := 0.0
	for _, p := range sample {
		ping += float64(p)
	}
	t.ping = ping / float64(len(sample))
	return t.ping
}

func (t *rttTracker) current() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.ping
}

// removeOutlierRTTs drops samples greater than twice the median that are
// also above 20ms. The median itself always survives.
func removeOutlierRTTs(recentRTTs []int64) []int64 {
	result := make([]int64, 0, len(recentRTTs))
	median := medianRTT(recentRTTs)
	for _, rtt := range recentRTTs {
		if rtt > 2*median && rtt > 20 {
			continue
		}
		result = append(result, rtt)
	}
	return result
}

// medianRTT returns the median RTT from a slice of RTTs.
func medianRTT(recentRTTs []int64) int64 {
	if len(recentRTTs) == 0 {
		return 0
	}
	sorted := make([]int64, len(recentRTTs))
	copy(sorted, recentRTTs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	if len(sorted)%2 == 0 {
		return (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	return sorted[len(sorted)/2]
}
