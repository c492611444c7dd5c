package anomaly

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

// BenfordResult summarizes the leading-digit check over a batch of amounts.
type BenfordResult struct {
	// Applicable is false when the sample is below the minimum size; the
	// check is then not reported.
	Applicable bool
	SampleSize int
	// Observed and Expected hold the frequency of leading digits 1..9 at
	// indexes 0..8.
	Observed [9]float64
	Expected [9]float64
	// MAD is the mean absolute deviation between observed and expected
	// frequencies.
	MAD      float64
	Exceeded bool
}

// BenfordExpected returns the expected leading-digit frequency
// log10(1 + 1/d) for d in 1..9.
func BenfordExpected(digit int) float64 {
	return math.Log10(1 + 1/float64(digit))
}

// CheckBenford computes the observed leading-digit distribution of the
// amounts and its mean absolute deviation from Benford's law. Amounts with
// no leading digit in 1..9 (zero) are skipped.
func CheckBenford(amounts []decimal.Decimal, minSample int, madThreshold float64) *BenfordResult {
	result := &BenfordResult{}
	for d := 1; d <= 9; d++ {
		result.Expected[d-1] = BenfordExpected(d)
	}

	var counts [9]int
	for _, amount := range amounts {
		d := leadingDigit(amount)
		if d < 1 {
			continue
		}
		counts[d-1]++
		result.SampleSize++
	}

	if result.SampleSize < minSample {
		return result
	}
	result.Applicable = true

	deviations := make([]float64, 9)
	for i := range counts {
		result.Observed[i] = float64(counts[i]) / float64(result.SampleSize)
		deviations[i] = math.Abs(result.Observed[i] - result.Expected[i])
	}

	mad, err := stats.Mean(deviations)
	if err != nil {
		return result
	}

	result.MAD = mad
	result.Exceeded = mad > madThreshold
	return result
}

// leadingDigit returns the first significant digit of the amount, or 0 when
// the amount has none.
func leadingDigit(amount decimal.Decimal) int {
	for _, r := range amount.Abs().String() {
		if r >= '1' && r <= '9' {
			return int(r - '0')
		}
	}
	return 0
}
