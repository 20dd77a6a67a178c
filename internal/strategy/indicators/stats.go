package indicators

import "math"

// RollingMean returns the trailing mean over period values. The first period-1 values are undefined.
func RollingMean(values []float64, period int) Series {
	out := make(Series, len(values))
	if validatePeriod(period) != nil {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = Value{Value: sum / float64(period), Defined: true}
		}
	}
	return out
}

// RollingStdDev returns the trailing sample standard deviation (n-1 denominator).
// The first period-1 values are undefined; a period below 2 yields no defined values.
func RollingStdDev(values []float64, period int) Series {
	out := make(Series, len(values))
	if period < 2 {
		return out
	}
	means := RollingMean(values, period)
	for i := period - 1; i < len(values); i++ {
		mean := means[i].Value
		ss := 0.0
		for _, v := range values[i-period+1 : i+1] {
			d := v - mean
			ss += d * d
		}
		out[i] = Value{Value: math.Sqrt(ss / float64(period-1)), Defined: true}
	}
	return out
}
