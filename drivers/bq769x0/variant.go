package bq769x0

// Variant selects one member of the bq769x0 family. The set is closed: only
// the three constants below are valid, everything else fails Info.
type Variant uint8

const (
	BQ76920 Variant = iota + 1 // 3–5 cells, 1 thermistor
	BQ76930                    // 6–10 cells, 2 thermistors
	BQ76940                    // 9–15 cells, 3 thermistors
)

func (v Variant) String() string {
	switch v {
	case BQ76920:
		return "bq76920"
	case BQ76930:
		return "bq76930"
	case BQ76940:
		return "bq76940"
	default:
		return "unknown"
	}
}

// ParseVariant accepts the part names used in configuration files.
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "bq76920", "bq7692000", "bq7692003":
		return BQ76920, true
	case "bq76930", "bq7693000", "bq7693003":
		return BQ76930, true
	case "bq76940", "bq7694000", "bq7694003":
		return BQ76940, true
	}
	return 0, false
}

// VariantInfo is the static per-variant layout.
type VariantInfo struct {
	MinCells    uint8
	MaxCells    uint8
	Thermistors uint8
	Groups      uint8 // 5-input cell groups (VC1–5, VC6–10, VC11–15)
}

var variantTable = [...]VariantInfo{
	BQ76920: {MinCells: 3, MaxCells: 5, Thermistors: 1, Groups: 1},
	BQ76930: {MinCells: 6, MaxCells: 10, Thermistors: 2, Groups: 2},
	BQ76940: {MinCells: 9, MaxCells: 15, Thermistors: 3, Groups: 3},
}

// Info returns the layout for v.
func (v Variant) Info() (VariantInfo, error) {
	switch v {
	case BQ76920, BQ76930, BQ76940:
		return variantTable[v], nil
	default:
		return VariantInfo{}, ErrUnknownVariant
	}
}

// ValidateCells checks min ≤ cells ≤ max for v.
func (v Variant) ValidateCells(cells uint8) error {
	vi, err := v.Info()
	if err != nil {
		return err
	}
	if cells < vi.MinCells || cells > vi.MaxCells {
		return ErrInvalidCellCount
	}
	return nil
}

// Used VC inputs (0-based within a group) for 3, 4 and 5 connected cells.
// Unused inputs are shorted on the board, so their readings are meaningless.
var groupInputs = [...][]uint8{
	3: {0, 1, 4},
	4: {0, 1, 2, 4},
	5: {0, 1, 2, 3, 4},
}

// CellInputs maps cell index (ascending from the pack negative) to the
// 0-based VC input whose register holds its voltage. Cells are spread across
// groups as evenly as possible with lower groups taking the remainder.
func (vi VariantInfo) CellInputs(cells uint8) []uint8 {
	out := make([]uint8, 0, cells)
	base := cells / vi.Groups
	extra := cells % vi.Groups
	for g := uint8(0); g < vi.Groups; g++ {
		n := base
		if g < extra {
			n++
		}
		for _, in := range groupInputs[n] {
			out = append(out, g*cellsPerGroup+in)
		}
	}
	return out
}

// cellVoltageBytes is the size of the VCx_HI..VCx_LO block for all groups.
func (vi VariantInfo) cellVoltageBytes() int { return int(vi.Groups) * cellsPerGroup * 2 }
