// Package policy holds the LE filter policy enumerations and decides which
// of their values make a procedure depend on the filter accept list.
//
// The three DependsOnList functions are the only place that interprets
// filter policy values; callers must not compare policy values themselves.
package policy

import "fmt"

// ScanFilterPolicy is the Scanning_Filter_Policy parameter [Vol 4, Part E, 7.8.10].
type ScanFilterPolicy uint8

const (
	ScanAcceptAll            ScanFilterPolicy = 0x00
	ScanAcceptListOnly       ScanFilterPolicy = 0x01
	ScanAcceptAllAndResolve  ScanFilterPolicy = 0x02
	ScanAcceptListAndResolve ScanFilterPolicy = 0x03
)

// AdvertisingFilterPolicy is the Advertising_Filter_Policy parameter [Vol 4, Part E, 7.8.5].
type AdvertisingFilterPolicy uint8

const (
	AdvAllDevices           AdvertisingFilterPolicy = 0x00
	AdvAcceptListForScan    AdvertisingFilterPolicy = 0x01
	AdvAcceptListForConnect AdvertisingFilterPolicy = 0x02
	AdvAcceptListForBoth    AdvertisingFilterPolicy = 0x03
)

// InitiatorFilterPolicy is the Initiator_Filter_Policy parameter [Vol 4, Part E, 7.8.12].
type InitiatorFilterPolicy uint8

const (
	InitiatorAllDevices     InitiatorFilterPolicy = 0x00
	InitiatorAcceptListOnly InitiatorFilterPolicy = 0x01
)

// ScanDependsOnList reports whether scanning with p filters on the accept list.
func ScanDependsOnList(p ScanFilterPolicy) bool {
	return p == ScanAcceptListOnly || p == ScanAcceptListAndResolve
}

// AdvertisingDependsOnList reports whether advertising with p filters scan
// or connection requests on the accept list.
func AdvertisingDependsOnList(p AdvertisingFilterPolicy) bool {
	return p != AdvAllDevices
}

// InitiatorDependsOnList reports whether connection initiation with p only
// connects to listed devices.
func InitiatorDependsOnList(p InitiatorFilterPolicy) bool {
	return p == InitiatorAcceptListOnly
}

func (p ScanFilterPolicy) Valid() bool {
	return p <= ScanAcceptListAndResolve
}

func (p AdvertisingFilterPolicy) Valid() bool {
	return p <= AdvAcceptListForBoth
}

func (p InitiatorFilterPolicy) Valid() bool {
	return p <= InitiatorAcceptListOnly
}

func (p ScanFilterPolicy) String() string {
	switch p {
	case ScanAcceptAll:
		return "accept_all"
	case ScanAcceptListOnly:
		return "accept_list_only"
	case ScanAcceptAllAndResolve:
		return "accept_all_and_resolve"
	case ScanAcceptListAndResolve:
		return "accept_list_and_resolve"
	default:
		return fmt.Sprintf("scan_policy(0x%02x)", uint8(p))
	}
}

func (p AdvertisingFilterPolicy) String() string {
	switch p {
	case AdvAllDevices:
		return "all_devices"
	case AdvAcceptListForScan:
		return "accept_list_for_scan"
	case AdvAcceptListForConnect:
		return "accept_list_for_connect"
	case AdvAcceptListForBoth:
		return "accept_list_for_both"
	default:
		return fmt.Sprintf("adv_policy(0x%02x)", uint8(p))
	}
}

func (p InitiatorFilterPolicy) String() string {
	switch p {
	case InitiatorAllDevices:
		return "all_devices"
	case InitiatorAcceptListOnly:
		return "accept_list_only"
	default:
		return fmt.Sprintf("initiator_policy(0x%02x)", uint8(p))
	}
}
