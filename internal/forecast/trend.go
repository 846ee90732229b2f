package forecast

// trend is a fitted line y = intercept + slope*x.
type trend struct {
	slope     float64
	intercept float64
}

func (t trend) at(x float64) float64 {
	return t.intercept + t.slope*x
}

// fitTrend fits an OLS line to series against its indices 0..n-1.
func fitTrend(series []float64) trend {
	n := float64(len(series))
	if n < 2 {
		return trend{}
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return trend{intercept: sumY / n}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return trend{slope: slope, intercept: (sumY - slope*sumX) / n}
}
