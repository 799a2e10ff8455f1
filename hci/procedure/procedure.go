// Package procedure tracks the LE procedures that may filter on the accept
// list: scanning, legacy advertising, extended advertising sets and the
// initiator.
package procedure

import (
	"fmt"
	"sort"

	"github.com/rigado/blesim/hci/policy"
)

type ScanState struct {
	Enabled bool                    `json:"enabled"`
	Policy  policy.ScanFilterPolicy `json:"policy"`
}

type AdvertisingState struct {
	Enabled bool                           `json:"enabled"`
	Policy  policy.AdvertisingFilterPolicy `json:"policy"`
}

type InitiatorState struct {
	Enabled bool                         `json:"enabled"`
	Policy  policy.InitiatorFilterPolicy `json:"policy"`
}

func (s ScanState) dependsOnList() bool {
	return s.Enabled && policy.ScanDependsOnList(s.Policy)
}

func (s AdvertisingState) dependsOnList() bool {
	return s.Enabled && policy.AdvertisingDependsOnList(s.Policy)
}

func (s InitiatorState) dependsOnList() bool {
	return s.Enabled && policy.InitiatorDependsOnList(s.Policy)
}

// Tracker holds one slot per singleton procedure and one per live extended
// advertising set. Setters store what they are given without validation.
// The zero value is an idle tracker. It is not safe for concurrent use.
type Tracker struct {
	scan      ScanState
	legacyAdv AdvertisingState
	initiator InitiatorState
	extAdv    map[uint8]AdvertisingState
}

func NewTracker() *Tracker {
	return &Tracker{
		extAdv: make(map[uint8]AdvertisingState),
	}
}

func (t *Tracker) SetScanState(enabled bool, p policy.ScanFilterPolicy) {
	t.scan = ScanState{Enabled: enabled, Policy: p}
}

func (t *Tracker) SetLegacyAdvertisingState(enabled bool, p policy.AdvertisingFilterPolicy) {
	t.legacyAdv = AdvertisingState{Enabled: enabled, Policy: p}
}

// SetExtendedAdvertisingState creates or updates the set identified by handle.
func (t *Tracker) SetExtendedAdvertisingState(handle uint8, enabled bool, p policy.AdvertisingFilterPolicy) {
	if t.extAdv == nil {
		t.extAdv = make(map[uint8]AdvertisingState)
	}
	t.extAdv[handle] = AdvertisingState{Enabled: enabled, Policy: p}
}

// RemoveExtendedAdvertisingSet forgets the set; it no longer affects
// ActiveDependentProcedureExists. Removing an unknown handle is a no-op.
func (t *Tracker) RemoveExtendedAdvertisingSet(handle uint8) {
	delete(t.extAdv, handle)
}

func (t *Tracker) ClearExtendedAdvertisingSets() {
	t.extAdv = make(map[uint8]AdvertisingState)
}

func (t *Tracker) SetInitiatorState(enabled bool, p policy.InitiatorFilterPolicy) {
	t.initiator = InitiatorState{Enabled: enabled, Policy: p}
}

func (t *Tracker) ScanState() ScanState {
	return t.scan
}

func (t *Tracker) LegacyAdvertisingState() AdvertisingState {
	return t.legacyAdv
}

func (t *Tracker) InitiatorState() InitiatorState {
	return t.initiator
}

func (t *Tracker) ExtendedAdvertisingSet(handle uint8) (AdvertisingState, bool) {
	s, ok := t.extAdv[handle]
	return s, ok
}

// Handles returns the live extended advertising handles in ascending order.
func (t *Tracker) Handles() []uint8 {
	hh := make([]uint8, 0, len(t.extAdv))
	for h := range t.extAdv {
		hh = append(hh, h)
	}
	sort.Slice(hh, func(i, j int) bool { return hh[i] < hh[j] })
	return hh
}

// ActiveDependentProcedureExists reports whether any enabled procedure
// filters on the accept list.
func (t *Tracker) ActiveDependentProcedureExists() bool {
	if t.scan.dependsOnList() || t.legacyAdv.dependsOnList() || t.initiator.dependsOnList() {
		return true
	}
	for _, s := range t.extAdv {
		if s.dependsOnList() {
			return true
		}
	}
	return false
}

// ActiveDependentProcedures names the procedures that currently block
// accept list changes, in a stable order.
func (t *Tracker) ActiveDependentProcedures() []string {
	var out []string
	if t.scan.dependsOnList() {
		out = append(out, "scan")
	}
	if t.legacyAdv.dependsOnList() {
		out = append(out, "legacy_advertising")
	}
	for _, h := range t.Handles() {
		if t.extAdv[h].dependsOnList() {
			out = append(out, fmt.Sprintf("extended_advertising[%d]", h))
		}
	}
	if t.initiator.dependsOnList() {
		out = append(out, "initiator")
	}
	return out
}
