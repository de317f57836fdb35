package backtest

import "math"

// mean of a float64 slice, 0 when empty.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation, 0 when n < 2.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// covariance is the sample covariance of two equal-length slices.
func covariance(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	sum := 0.0
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs)-1)
}

// variance is the sample variance, 0 when n < 2.
func variance(values []float64) float64 {
	sd := stddev(values)
	return sd * sd
}

// pearson is the Pearson correlation coefficient, 0 when n < 2 or
// either side has zero variance.
func pearson(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	sx, sy := stddev(xs), stddev(ys)
	if sx == 0 || sy == 0 {
		return 0
	}
	return covariance(xs, ys) / (sx * sy)
}
