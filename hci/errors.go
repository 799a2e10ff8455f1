package hci

import "fmt"

// StatusSuccess is the status byte of a command that completed normally.
const StatusSuccess uint8 = 0x00

// ErrCommand is an HCI error code [Vol 1, Part F, 1.3].
type ErrCommand byte

// HCI error codes returned by the simulated controller.
const (
	ErrUnknownCommand               ErrCommand = 0x01
	ErrMemoryCapacity               ErrCommand = 0x07
	ErrDisallowed                   ErrCommand = 0x0C
	ErrInvalidParameters            ErrCommand = 0x12
	ErrUnspecified                  ErrCommand = 0x1F
	ErrUnknownAdvertisingIdentifier ErrCommand = 0x42
)

var errCommandNames = map[ErrCommand]string{
	ErrUnknownCommand:               "unknown HCI command",
	ErrMemoryCapacity:               "memory capacity exceeded",
	ErrDisallowed:                   "command disallowed",
	ErrInvalidParameters:            "invalid HCI command parameters",
	ErrUnspecified:                  "unspecified error",
	ErrUnknownAdvertisingIdentifier: "unknown advertising identifier",
}

func (e ErrCommand) Error() string {
	if s, ok := errCommandNames[e]; ok {
		return s
	}
	return fmt.Sprintf("hci error 0x%02X", byte(e))
}

// Status converts the result of a command handler into its status byte.
// Errors that are not HCI error codes become ErrUnspecified.
func Status(err error) uint8 {
	switch e := err.(type) {
	case nil:
		return StatusSuccess
	case ErrCommand:
		return byte(e)
	default:
		return byte(ErrUnspecified)
	}
}
