package profiler

// Adaptive sampling tiers. Fractions shrink as datasets grow so the sampled
// pass stays cheap while small datasets are read in full. Fractions are
// stored in tenths so sample sizes compute exactly in integer arithmetic
// (float rounding at tier products like 5000*0.80 must not leak into sizes).
var samplingTiers = []struct {
	below  int64 // tier applies when totalRows < below
	tenths int64
}{
	{5_000, 10},
	{10_000, 8},
	{25_000, 6},
	{100_000, 4},
	{500_000, 2},
}

// tenths applied at and above the last tier boundary.
const minTenths = 1

// SamplingPlan is the outcome of the adaptive sampling policy for one
// dataset size.
type SamplingPlan struct {
	TotalRows  int64
	Fraction   float64
	SampleSize int64
}

// Plan applies the adaptive policy to a dataset size. The sample size is
// ceil(totalRows*fraction) clamped to [1, totalRows]; a zero-row dataset
// yields a zero-size plan.
func Plan(totalRows int64) SamplingPlan {
	if totalRows <= 0 {
		return SamplingPlan{}
	}

	tenths := int64(minTenths)
	for _, t := range samplingTiers {
		if totalRows < t.below {
			tenths = t.tenths
			break
		}
	}

	size := (totalRows*tenths + 9) / 10
	return SamplingPlan{
		TotalRows:  totalRows,
		Fraction:   float64(tenths) / 10,
		SampleSize: clampSize(size, totalRows),
	}
}

// PlanWithSize bypasses the adaptive tiers with an explicit sample size,
// still clamped to [1, totalRows].
func PlanWithSize(totalRows, sampleSize int64) SamplingPlan {
	if totalRows <= 0 {
		return SamplingPlan{}
	}
	size := clampSize(sampleSize, totalRows)
	return SamplingPlan{
		TotalRows:  totalRows,
		Fraction:   float64(size) / float64(totalRows),
		SampleSize: size,
	}
}

// RowIndices returns the 1-based row sequence numbers to sample: an evenly
// spaced stride over [1, TotalRows], strictly increasing, deterministic for
// a given plan.
func (p SamplingPlan) RowIndices() []int64 {
	if p.SampleSize <= 0 {
		return nil
	}
	out := make([]int64, p.SampleSize)
	for i := int64(0); i < p.SampleSize; i++ {
		out[i] = (i*p.TotalRows)/p.SampleSize + 1
	}
	return out
}

func clampSize(size, total int64) int64 {
	if size < 1 {
		return 1
	}
	if size > total {
		return total
	}
	return size
}
