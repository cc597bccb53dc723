package bq769x0

const (
	// 7-bit I2C address of the bq7692000/bq7693000/bq7694000 (…01/…06 parts use 0x18).
	AddressDefault = 0x08
	AddressAlt     = 0x18

	// --- Register addresses (8-bit registers) ---

	regSysStat  = 0x00 // R/W1C
	regCellBal1 = 0x01 // R/W, group 1 (VC1..VC5)
	regCellBal2 = 0x02 // R/W, group 2 (VC6..VC10), bq76930/40
	regCellBal3 = 0x03 // R/W, group 3 (VC11..VC15), bq76940
	regSysCtrl1 = 0x04 // R/W
	regSysCtrl2 = 0x05 // R/W
	regProtect1 = 0x06 // R/W: RSNS, SCD_D, SCD_T
	regProtect2 = 0x07 // R/W: OCD_D, OCD_T
	regProtect3 = 0x08 // R/W: UV_D, OV_D
	regOVTrip   = 0x09 // R/W
	regUVTrip   = 0x0A // R/W
	regCCCfg    = 0x0B // R/W, must be 0x19

	regVC1Hi = 0x0C // VCn_HI at 0x0C + 2(n-1), big-endian 14-bit
	regBatHi = 0x2A // BAT_HI/BAT_LO, 16-bit
	regTS1Hi = 0x2C // TSn_HI at 0x2C + 2(n-1), 14-bit
	regCCHi  = 0x32 // CC_HI/CC_LO, signed 16-bit

	regADCGain1  = 0x50 // bits 3:2 = ADCGAIN<4:3>
	regADCOffset = 0x51 // signed mV
	regADCGain2  = 0x59 // bits 7:5 = ADCGAIN<2:0>

	ccCfgValue = 0x19

	// --- SYS_CTRL1 ---
	ctrl1ADCEn   = 1 << 4
	ctrl1TempSel = 1 << 3
	ctrl1ShutA   = 1 << 1
	ctrl1ShutB   = 1 << 0

	// --- SYS_CTRL2 ---
	ctrl2DelayDis  = 1 << 7
	ctrl2CCEn      = 1 << 6
	ctrl2CCOneShot = 1 << 5
	ctrl2DsgOn     = 1 << 1
	ctrl2ChgOn     = 1 << 0

	// --- PROTECT1 ---
	protect1RSNS = 1 << 7

	cellsPerGroup = 5
	adcCodeMask   = 0x3FFF
)
