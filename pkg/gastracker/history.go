package gastracker

// HistoryDepth is the fixed capacity of each chain's price history.
const HistoryDepth = 24

// ring is a fixed-capacity FIFO of recent gas prices. The oldest sample is
// evicted on overflow. It backs trend analytics only; authoritative current
// prices live in the record table.
type ring struct {
	buf  [HistoryDepth]uint64
	head int // index of the oldest sample
	size int
}

func (r *ring) push(v uint64) {
	if r.size < HistoryDepth {
		r.buf[(r.head+r.size)%HistoryDepth] = v
		r.size++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % HistoryDepth
}

func (r *ring) len() int { return r.size }

// last returns the most recent n samples in oldest-first order.
// n greater than the stored count returns everything.
func (r *ring) last(n int) []uint64 {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]uint64, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%HistoryDepth]
	}
	return out
}

// TrendStats summarises a window of recent prices. All figures use integer
// arithmetic; VolatilityBps is (max-min)*10000/average, zero when the
// average is zero.
type TrendStats struct {
	Average       uint64
	Min           uint64
	Max           uint64
	VolatilityBps uint64
	IsIncreasing  bool
}

// computeTrend derives statistics over the given oldest-first samples.
func computeTrend(samples []uint64) TrendStats {
	if len(samples) == 0 {
		return TrendStats{}
	}

	var sum uint64
	min, max := samples[0], samples[0]
	for _, s := range samples {
		sum += s
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	stats := TrendStats{
		Average: sum / uint64(len(samples)),
		Min:     min,
		Max:     max,
	}
	if stats.Average > 0 {
		stats.VolatilityBps = (max - min) * 10000 / stats.Average
	}
	if len(samples) >= 2 {
		stats.IsIncreasing = samples[len(samples)-1] > samples[len(samples)-2]
	}
	return stats
}
