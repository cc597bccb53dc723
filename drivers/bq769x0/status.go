package bq769x0

// Status mirrors SYS_STAT (0x00). Bits are cleared by writing 1.
type Status uint8

const (
	StatusOCD        Status = 1 << 0
	StatusSCD        Status = 1 << 1
	StatusOV         Status = 1 << 2
	StatusUV         Status = 1 << 3
	StatusOvrdAlert  Status = 1 << 4
	StatusDeviceXRdy Status = 1 << 5
	StatusCCReady    Status = 1 << 7

	// StatusFaults are the latched protection/fault conditions.
	StatusFaults = StatusOCD | StatusSCD | StatusOV | StatusUV | StatusOvrdAlert | StatusDeviceXRdy
	StatusAll    = StatusFaults | StatusCCReady
)

func (s Status) Has(flag Status) bool { return s&flag != 0 }

// OK reports no latched fault (CC_READY is informational).
func (s Status) OK() bool { return s&StatusFaults == 0 }

func (s Status) Faults() Status { return s & StatusFaults }

var statusNames = [...]struct {
	bit  Status
	name string
}{
	{StatusCCReady, "CC_READY"},
	{StatusDeviceXRdy, "XREADY"},
	{StatusOvrdAlert, "ALERT"},
	{StatusUV, "UV"},
	{StatusOV, "OV"},
	{StatusSCD, "SCD"},
	{StatusOCD, "OCD"},
}

// String lists the set flags, e.g. "UV|OCD"; "" when clear.
func (s Status) String() string {
	out := ""
	for _, n := range statusNames {
		if s&n.bit == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n.name
	}
	return out
}
