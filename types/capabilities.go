package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

// KindBMS is the battery monitor capability.
const KindBMS Kind = "bms"

// CapabilityAddress identifies a public capability on the bus:
// hal/cap/<domain>/<kind>/<name>/...
type CapabilityAddress struct {
	Domain string `json:"domain"` // e.g. "power"
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}

// Tokens returns the address as topic tokens under the hal/cap prefix.
func (a CapabilityAddress) Tokens(tail ...string) []any {
	out := make([]any, 0, 5+len(tail))
	out = append(out, "hal", "cap", a.Domain, string(a.Kind), a.Name)
	for _, t := range tail {
		out = append(out, t)
	}
	return out
}
