package controller

import (
	"github.com/rigado/blesim/hci/cmd"
)

// params holds the last accepted "set parameters" command of each procedure.
// The filter policy fields are copied into the procedure tracker whenever
// the procedure is enabled.
type params struct {
	scanParams cmd.LESetScanParameters
	advParams  cmd.LESetAdvertisingParameters
	connParams cmd.LECreateConnection

	// extended advertising parameters by advertising handle
	extAdvParams map[uint8]cmd.LESetExtendedAdvertisingParameters
}

func (p *params) init() {
	p.scanParams = cmd.LESetScanParameters{
		LEScanType:           0x00,   // 0x00: passive, 0x01: active
		LEScanInterval:       0x0010, // 0x0004 - 0x4000; N * 0.625msec
		LEScanWindow:         0x0010, // 0x0004 - 0x4000; N * 0.625msec
		OwnAddressType:       0x00,   // 0x00: public, 0x01: random
		ScanningFilterPolicy: 0x00,   // 0x00: accept all, 0x01: ignore non-listed.
	}
	p.advParams = cmd.LESetAdvertisingParameters{
		AdvertisingIntervalMin:  0x0800,    // 0x0020 - 0x4000; N * 0.625 msec
		AdvertisingIntervalMax:  0x0800,    // 0x0020 - 0x4000; N * 0.625 msec
		AdvertisingType:         0x00,      // 00: ADV_IND, 0x01: DIRECT(HIGH), 0x02: SCAN, 0x03: NONCONN, 0x04: DIRECT(LOW)
		OwnAddressType:          0x00,      // 0x00: public, 0x01: random
		DirectAddressType:       0x00,      // 0x00: public, 0x01: random
		DirectAddress:           [6]byte{}, // Public or Random Address of the Device to be connected
		AdvertisingChannelMap:   0x7,       // 0x07 0x01: ch37, 0x2: ch38, 0x4: ch39
		AdvertisingFilterPolicy: 0x00,
	}
	p.connParams = cmd.LECreateConnection{}
	p.extAdvParams = make(map[uint8]cmd.LESetExtendedAdvertisingParameters)
}
