package bq769x0

// BalanceMask selects cells for passive balancing; bit i is cell i in
// ascending order from the pack negative (not the VC input number).
type BalanceMask uint16

// ValidateBalanceMask rejects bits beyond the cell count and any pair of
// neighbouring cells. Balancing two adjacent cells at once can exceed the
// VCx input ratings.
func ValidateBalanceMask(cells uint8, m BalanceMask) error {
	if cells < 16 && m>>cells != 0 {
		return ErrBalanceOutOfRange
	}
	if m&(m>>1) != 0 {
		return ErrBalanceAdjacent
	}
	return nil
}

// balanceRegisters spreads a validated cell mask over CELLBAL1..3 using the
// cell → VC input layout.
func balanceRegisters(inputs []uint8, m BalanceMask) [3]byte {
	var regs [3]byte
	for cell, in := range inputs {
		if m&(1<<cell) == 0 {
			continue
		}
		regs[in/cellsPerGroup] |= 1 << (in % cellsPerGroup)
	}
	return regs
}

// balanceMaskFromRegisters is the inverse of balanceRegisters.
func balanceMaskFromRegisters(inputs []uint8, regs []byte) BalanceMask {
	var m BalanceMask
	for cell, in := range inputs {
		g := int(in / cellsPerGroup)
		if g < len(regs) && regs[g]&(1<<(in%cellsPerGroup)) != 0 {
			m |= 1 << cell
		}
	}
	return m
}
