package hci

import (
	"fmt"

	"github.com/rigado/blesim/hci/cmd"
	"github.com/rigado/blesim/hci/policy"
)

const (
	AddressTypePublic = 0
	AddressTypeRandom = 1
	LEScanTypePassive = 0
	LEScanTypeActive  = 1

	// own address types 0x02/0x03 ask the controller to resolve; the
	// simulator has no resolving list but accepts them as valid
	OwnAddressTypeMax = 0x03

	LEScanIntervalMin = 0x0004
	LEScanIntervalMax = 0x4000
	LEScanWindowMin   = 0x0004
	LEScanWindowMax   = 0x4000

	AdvIntervalMin    = 0x0020
	AdvIntervalMax    = 0x4000
	AdvTypeMax        = 0x04
	AdvChannelMapMask = 0x07

	ExtAdvIntervalMin = 0x000020
	ExtAdvHandleMax   = 0xEF

	// Advertising_Event_Properties bit selecting legacy advertising PDUs
	ExtAdvPropLegacy = 0x0010

	ConnIntervalMin = 0x0006
	ConnIntervalMax = 0x0c80
	ConnLatencyMin  = 0x0000
	ConnLatencyMax  = 0x01f3

	SupervisionTimeoutMin = 0x000a
	SupervisionTimeoutMax = 0x0c80
)

func ValidateScanParams(p cmd.LESetScanParameters) error {
	switch {
	case p.LEScanType != LEScanTypeActive && p.LEScanType != LEScanTypePassive:
		return fmt.Errorf("invalid LEScanType %v", p.LEScanType)

	case p.LEScanInterval < LEScanIntervalMin || p.LEScanInterval > LEScanIntervalMax:
		return fmt.Errorf("invalid LEScanInterval %v", p.LEScanInterval)

	case p.LEScanWindow < LEScanWindowMin || p.LEScanWindow > LEScanWindowMax:
		return fmt.Errorf("invalid LEScanWindow %v", p.LEScanWindow)

	case p.LEScanWindow > p.LEScanInterval:
		return fmt.Errorf("LEScanWindow %v > LEScanInterval %v", p.LEScanWindow, p.LEScanInterval)

	case p.OwnAddressType > OwnAddressTypeMax:
		return fmt.Errorf("invalid OwnAddressType %v", p.OwnAddressType)

	case !policy.ScanFilterPolicy(p.ScanningFilterPolicy).Valid():
		return fmt.Errorf("invalid ScanningFilterPolicy %v", p.ScanningFilterPolicy)
	}

	return nil
}

func ValidateAdvParams(p cmd.LESetAdvertisingParameters) error {
	// directed high duty cycle advertising ignores the interval
	directHigh := p.AdvertisingType == 0x01

	switch {
	case p.AdvertisingType > AdvTypeMax:
		return fmt.Errorf("invalid AdvertisingType %v", p.AdvertisingType)

	case !directHigh && (p.AdvertisingIntervalMin < AdvIntervalMin || p.AdvertisingIntervalMin > AdvIntervalMax):
		return fmt.Errorf("invalid AdvertisingIntervalMin %v", p.AdvertisingIntervalMin)

	case !directHigh && (p.AdvertisingIntervalMax < AdvIntervalMin || p.AdvertisingIntervalMax > AdvIntervalMax):
		return fmt.Errorf("invalid AdvertisingIntervalMax %v", p.AdvertisingIntervalMax)

	case !directHigh && p.AdvertisingIntervalMin > p.AdvertisingIntervalMax:
		return fmt.Errorf("AdvertisingIntervalMin %v > AdvertisingIntervalMax %v", p.AdvertisingIntervalMin, p.AdvertisingIntervalMax)

	case p.OwnAddressType > OwnAddressTypeMax:
		return fmt.Errorf("invalid OwnAddressType %v", p.OwnAddressType)

	case p.DirectAddressType != AddressTypePublic && p.DirectAddressType != AddressTypeRandom:
		return fmt.Errorf("invalid DirectAddressType %v", p.DirectAddressType)

	case p.AdvertisingChannelMap == 0 || p.AdvertisingChannelMap&^AdvChannelMapMask != 0:
		return fmt.Errorf("invalid AdvertisingChannelMap %v", p.AdvertisingChannelMap)

	case !policy.AdvertisingFilterPolicy(p.AdvertisingFilterPolicy).Valid():
		return fmt.Errorf("invalid AdvertisingFilterPolicy %v", p.AdvertisingFilterPolicy)
	}

	return nil
}

// ValidateExtAdvParams checks the fields the simulated advertiser keeps.
// Sets using legacy PDUs are accepted with any primary interval, and a zero
// channel map is accepted since nothing is ever transmitted.
func ValidateExtAdvParams(p cmd.LESetExtendedAdvertisingParameters) error {
	imin := cmd.Interval24(p.PrimaryAdvertisingIntervalMin)
	imax := cmd.Interval24(p.PrimaryAdvertisingIntervalMax)
	legacy := p.AdvertisingEventProperties&ExtAdvPropLegacy != 0

	switch {
	case p.AdvertisingHandle > ExtAdvHandleMax:
		return fmt.Errorf("invalid AdvertisingHandle %v", p.AdvertisingHandle)

	case !legacy && imin < ExtAdvIntervalMin:
		return fmt.Errorf("invalid PrimaryAdvertisingIntervalMin %v", imin)

	case !legacy && imax < ExtAdvIntervalMin:
		return fmt.Errorf("invalid PrimaryAdvertisingIntervalMax %v", imax)

	case imin > imax:
		return fmt.Errorf("PrimaryAdvertisingIntervalMin %v > PrimaryAdvertisingIntervalMax %v", imin, imax)

	case p.PrimaryAdvertisingChannelMap&^AdvChannelMapMask != 0:
		return fmt.Errorf("invalid PrimaryAdvertisingChannelMap %v", p.PrimaryAdvertisingChannelMap)

	case p.OwnAddressType > OwnAddressTypeMax:
		return fmt.Errorf("invalid OwnAddressType %v", p.OwnAddressType)

	case p.PeerAddressType != AddressTypePublic && p.PeerAddressType != AddressTypeRandom:
		return fmt.Errorf("invalid PeerAddressType %v", p.PeerAddressType)

	case !policy.AdvertisingFilterPolicy(p.AdvertisingFilterPolicy).Valid():
		return fmt.Errorf("invalid AdvertisingFilterPolicy %v", p.AdvertisingFilterPolicy)
	}

	return nil
}

func ValidateConnParams(p cmd.LECreateConnection) error {

	/* The Supervision_Timeout in milliseconds shall be larger than
	(1 + Conn_Latency) * Conn_Interval_Max * 2, where Conn_Interval_Max is
	given in milliseconds.
	*/
	minStoMs := (1 + float64(p.ConnLatency)) * (float64(p.ConnIntervalMax) * 1.25) * 2
	stoMs := float64(p.SupervisionTimeout) * 10

	switch {
	case p.LEScanInterval < LEScanIntervalMin || p.LEScanInterval > LEScanIntervalMax:
		return fmt.Errorf("invalid LEScanInterval %v", p.LEScanInterval)

	case p.LEScanWindow < LEScanWindowMin || p.LEScanWindow > LEScanWindowMax:
		return fmt.Errorf("invalid LEScanWindow %v", p.LEScanWindow)

	case p.LEScanWindow > p.LEScanInterval:
		return fmt.Errorf("LEScanWindow %v > LEScanInterval %v", p.LEScanWindow, p.LEScanInterval)

	case !policy.InitiatorFilterPolicy(p.InitiatorFilterPolicy).Valid():
		return fmt.Errorf("invalid InitiatorFilterPolicy %v", p.InitiatorFilterPolicy)

	case p.OwnAddressType > OwnAddressTypeMax:
		return fmt.Errorf("invalid OwnAddressType %v", p.OwnAddressType)

	case p.PeerAddressType > OwnAddressTypeMax:
		// peer identity address types 0x02/0x03 are legal here too
		return fmt.Errorf("invalid PeerAddressType %v", p.PeerAddressType)

	case p.ConnIntervalMax < ConnIntervalMin || p.ConnIntervalMax > ConnIntervalMax:
		return fmt.Errorf("invalid ConnIntervalMax %v", p.ConnIntervalMax)

	case p.ConnIntervalMin < ConnIntervalMin || p.ConnIntervalMin > ConnIntervalMax:
		return fmt.Errorf("invalid ConnIntervalMin %v", p.ConnIntervalMin)

	case p.ConnIntervalMin > p.ConnIntervalMax:
		return fmt.Errorf("ConnIntervalMin %v > ConnIntervalMax %v", p.ConnIntervalMin, p.ConnIntervalMax)

	case p.ConnLatency < ConnLatencyMin || p.ConnLatency > ConnLatencyMax:
		return fmt.Errorf("invalid ConnLatency %v", p.ConnLatency)

	case p.SupervisionTimeout < SupervisionTimeoutMin || p.SupervisionTimeout > SupervisionTimeoutMax:
		return fmt.Errorf("invalid SupervisionTimeout %v", p.SupervisionTimeout)

	case stoMs <= minStoMs:
		return fmt.Errorf("invalid SupervisionTimeout %v (too small)", p.SupervisionTimeout)

	case p.MinimumCELength > p.MaximumCELength:
		return fmt.Errorf("MinimumCELength %v > MaximumCELength %v", p.MinimumCELength, p.MaximumCELength)

	}

	return nil
}
