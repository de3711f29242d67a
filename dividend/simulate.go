package dividend

import "sort"

// Summary is the descriptive statistics of a simulated distribution's
// payment amounts.
type Summary struct {
	Payments int     `json:"payments"`
	Largest  uint64  `json:"largest"`
	Smallest uint64  `json:"smallest"`
	Median   uint64  `json:"median"`
	Average  float64 `json:"average"`
}

// Simulate runs the same pro-rata calculation as CalculateProRata and
// returns it with summary statistics. Because the calculation is pure, the
// returned distribution is byte-for-byte what the real call would produce.
func Simulate(totalAmount uint64, holders []Holder, minPayment uint64) (*Distribution, Summary) {
	dist := CalculateProRata(totalAmount, holders, minPayment)
	return dist, Summarize(dist)
}

// Summarize computes payment statistics for a distribution. An empty payment
// list yields a zero summary.
func Summarize(dist *Distribution) Summary {
	if len(dist.Payments) == 0 {
		return Summary{}
	}

	amounts := make([]uint64, len(dist.Payments))
	var sum uint64
	for i, p := range dist.Payments {
		amounts[i] = p.Amount
		sum += p.Amount
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

	return Summary{
		Payments: len(amounts),
		Largest:  amounts[len(amounts)-1],
		Smallest: amounts[0],
		Median:   amounts[len(amounts)/2],
		Average:  float64(sum) / float64(len(amounts)),
	}
}
