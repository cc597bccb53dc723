package bq769x0

// CurrentRange is the RSNS selection shared by the SCD and OCD comparators.
type CurrentRange uint8

const (
	RangeLower CurrentRange = iota // RSNS = 0
	RangeUpper                     // RSNS = 1
)

func (r CurrentRange) String() string {
	if r == RangeUpper {
		return "upper"
	}
	return "lower"
}

func (r CurrentRange) bits() byte {
	if r == RangeUpper {
		return protect1RSNS
	}
	return 0
}

// Comparator thresholds in mV across the shunt, indexed by register code.
var (
	scdTable = [...][]uint8{
		RangeLower: {22, 33, 44, 56, 67, 78, 89, 100},
		RangeUpper: {44, 67, 89, 111, 133, 155, 178, 200},
	}
	ocdTable = [...][]uint8{
		RangeLower: {8, 11, 14, 17, 19, 22, 25, 28, 31, 33, 36, 39, 42, 44, 47, 50},
		RangeUpper: {17, 22, 28, 33, 39, 44, 50, 56, 61, 67, 72, 78, 83, 89, 94, 100},
	}
	currentRanges = [...]CurrentRange{RangeLower, RangeUpper}
)

// thresholdPick is the comparator setting chosen for one request.
type thresholdPick struct {
	code      byte
	uV        int64 // table value in µV
	shortfall int64 // request − table value, ≥ 0
}

// pickAtOrBelow selects the largest table entry not above uV. A range that
// cannot represent uV reports ok=false: below its minimum always, above its
// maximum unless top is set (the top range clamps to its maximum).
func pickAtOrBelow(tab []uint8, uV int64, top bool) (thresholdPick, bool) {
	lo := int64(tab[0]) * 1000
	hi := int64(tab[len(tab)-1]) * 1000
	if uV < lo || (uV > hi && !top) {
		return thresholdPick{}, false
	}
	p := thresholdPick{}
	for i, mV := range tab {
		v := int64(mV) * 1000
		if v > uV {
			break
		}
		p = thresholdPick{code: byte(i), uV: v, shortfall: uV - v}
	}
	return p, true
}
