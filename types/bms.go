package types

// ------------------------
// Battery monitor (bq769x0)
// ------------------------

// BMSInfo is Info.Detail for a battery monitor (retained).
type BMSInfo struct {
	Variant     string `json:"variant"` // "bq76920" | "bq76930" | "bq76940"
	Cells       uint8  `json:"cells"`
	Thermistors uint8  `json:"thermistors"`
	Bus         string `json:"bus"`
	Addr        uint16 `json:"addr"`
	Shunt_uOhm  uint32 `json:"shunt_uohm"`

	// Calibration read from OTP.
	GainMicroV   uint16 `json:"adc_gain_uV"`
	OffsetMilliV int8   `json:"adc_offset_mV"`

	// Thresholds as programmed (achieved, not requested).
	Range    string `json:"range"` // "lower" | "upper"
	SCD_mA   int32  `json:"scd_mA"`
	SCDDelay uint32 `json:"scd_delay_us"`
	OCD_mA   int32  `json:"ocd_mA"`
	OCDDelay uint32 `json:"ocd_delay_ms"`
	UV_mV    int32  `json:"uv_mV"`
	UVDelay  uint32 `json:"uv_delay_s"`
	OV_mV    int32  `json:"ov_mV"`
	OVDelay  uint32 `json:"ov_delay_s"`
}

// BMSValue is the periodic sample (retained):
// hal/cap/power/bms/<name>/value
type BMSValue struct {
	Cells_mV    []int32 `json:"cells_mV"` // ascending from pack negative
	Pack_mV     int32   `json:"pack_mV"`
	Current_mA  int32   `json:"current_mA"`         // + charge, - discharge
	Temps_cC    []int32 `json:"temps_cC,omitempty"` // centi-°C; absent while settling
	TempSource  string  `json:"temp_source"`
	Status      uint8   `json:"status"` // raw SYS_STAT
	Faults      string  `json:"faults,omitempty"`
	Charging    bool    `json:"chg"`
	Discharging bool    `json:"dsg"`
	Balancing   uint16  `json:"balancing"` // cell mask
	TS          int64   `json:"ts_ns"`
}

// Controls on hal/cap/power/bms/<name>/control/<verb>
type SwitchSet struct {
	On bool `json:"on"`
} // verbs: "charge", "discharge"

type BalanceSet struct {
	Mask uint16 `json:"mask"` // bit i = cell i
} // verb: "balance"

type StatusClear struct {
	Mask uint8 `json:"mask"` // SYS_STAT bits; 0 clears all
} // verb: "clear_status"

type TempSourceSet struct {
	External bool `json:"external"`
} // verb: "temp_source"

// verb: "read" takes no payload and replies with the fresh BMSValue.
// verb: "ship" takes no payload and puts the AFE into ship mode.
