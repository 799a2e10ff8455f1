package hci

// HCI Packet types
const (
	PktTypeCommand uint8 = 0x01
	PktTypeACLData uint8 = 0x02
	PktTypeEvent   uint8 = 0x04
)

const (
	ogfControllerBaseband = 0x03
	ogfLEController       = 0x08
	ogfBitShift           = 10
)

func opCode(ogf, ocf int) int {
	return ogf<<ogfBitShift | ocf
}

// Command opcodes handled by the simulated controller [Vol 4, Part E, 7.3 and 7.8].
var (
	OpReset = opCode(ogfControllerBaseband, 0x0003)

	OpLESetAdvertisingParameters         = opCode(ogfLEController, 0x0006)
	OpLESetAdvertiseEnable               = opCode(ogfLEController, 0x000A)
	OpLESetScanParameters                = opCode(ogfLEController, 0x000B)
	OpLESetScanEnable                    = opCode(ogfLEController, 0x000C)
	OpLECreateConnection                 = opCode(ogfLEController, 0x000D)
	OpLECreateConnectionCancel           = opCode(ogfLEController, 0x000E)
	OpLEReadFilterAcceptListSize         = opCode(ogfLEController, 0x000F)
	OpLEClearFilterAcceptList            = opCode(ogfLEController, 0x0010)
	OpLEAddDeviceToFilterAcceptList      = opCode(ogfLEController, 0x0011)
	OpLERemoveDeviceFromFilterAcceptList = opCode(ogfLEController, 0x0012)
	OpLESetExtendedAdvertisingParameters = opCode(ogfLEController, 0x0036)
	OpLESetExtendedAdvertisingEnable     = opCode(ogfLEController, 0x0039)
	OpLERemoveAdvertisingSet             = opCode(ogfLEController, 0x003C)
	OpLEClearAdvertisingSets             = opCode(ogfLEController, 0x003D)
)

// Event codes
const (
	EvtCommandCompleteCode = 0x0E
	EvtCommandStatusCode   = 0x0F
)

// CommandHeaderLength is the H4 type byte, the 2-byte opcode and the length byte.
const CommandHeaderLength = 4
