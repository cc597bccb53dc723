package bq769x0

// ThermistorPoint is one entry of a resistance/temperature table.
type ThermistorPoint struct {
	R Ohms
	T CentiCelsius
}

// ThermistorCurve is a piecewise-linear NTC characteristic, ordered by
// strictly decreasing resistance (increasing temperature). No curve ships
// with the driver: it must come from the datasheet of the fitted part.
type ThermistorCurve []ThermistorPoint

// Validate checks ordering; a curve needs at least two points.
func (c ThermistorCurve) Validate() error {
	if len(c) < 2 {
		return ErrThermistorCurveUndefined
	}
	for i := 1; i < len(c); i++ {
		if c[i].R >= c[i-1].R {
			return ErrThermistorCurveUndefined
		}
	}
	return nil
}

// Temperature interpolates linearly between the bracketing points and clamps
// to the table ends outside it.
func (c ThermistorCurve) Temperature(r Ohms) CentiCelsius {
	n := len(c)
	if n == 0 {
		return 0
	}
	if r >= c[0].R {
		return c[0].T
	}
	if r <= c[n-1].R {
		return c[n-1].T
	}
	for i := 1; i < n; i++ {
		hi, lo := c[i-1], c[i]
		if r > lo.R {
			// r in (lo.R, hi.R]
			span := int64(hi.R) - int64(lo.R)
			dt := int64(lo.T) - int64(hi.T)
			return hi.T + CentiCelsius(dt*(int64(hi.R)-int64(r))/span)
		}
	}
	return c[n-1].T
}
