package controller

import (
	"github.com/rigado/blesim/hci"
	"github.com/rigado/blesim/hci/cmd"
	"github.com/rigado/blesim/hci/policy"
)

// Advertising_TX_Power value meaning "host has no preference" [Vol 4, Part E, 7.8.53].
const txPowerNoPreference = 0x7F

const (
	txPowerMin = -127
	txPowerMax = 20
)

// SetScanParameters stores the parameters used by the next scan enable.
func (c *LinkLayerController) SetScanParameters(p cmd.LESetScanParameters) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := hci.ValidateScanParams(p); err != nil {
		c.logger.Debugf("set scan parameters: %v", err)
		return hci.ErrInvalidParameters
	}
	if c.procedures.ScanState().Enabled {
		return hci.ErrDisallowed
	}

	c.params.scanParams = p
	return nil
}

// SetScanEnable starts or stops scanning with the stored scan parameters.
func (c *LinkLayerController) SetScanEnable(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := policy.ScanFilterPolicy(c.params.scanParams.ScanningFilterPolicy)
	c.procedures.SetScanState(enable, p)
	c.logger.Debugf("scan enable %v, filter policy %v", enable, p)
	return nil
}

// SetAdvertisingParameters stores the legacy advertising parameters.
func (c *LinkLayerController) SetAdvertisingParameters(p cmd.LESetAdvertisingParameters) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := hci.ValidateAdvParams(p); err != nil {
		c.logger.Debugf("set advertising parameters: %v", err)
		return hci.ErrInvalidParameters
	}
	if c.procedures.LegacyAdvertisingState().Enabled {
		return hci.ErrDisallowed
	}

	c.params.advParams = p
	return nil
}

// SetAdvertisingEnable starts or stops legacy advertising.
func (c *LinkLayerController) SetAdvertisingEnable(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := policy.AdvertisingFilterPolicy(c.params.advParams.AdvertisingFilterPolicy)
	c.procedures.SetLegacyAdvertisingState(enable, p)
	c.logger.Debugf("advertising enable %v, filter policy %v", enable, p)
	return nil
}

// SetExtendedAdvertisingParameters creates or updates an advertising set and
// returns the selected transmit power.
func (c *LinkLayerController) SetExtendedAdvertisingParameters(p cmd.LESetExtendedAdvertisingParameters) (int8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := hci.ValidateExtAdvParams(p); err != nil {
		c.logger.Debugf("set extended advertising parameters: %v", err)
		return 0, hci.ErrInvalidParameters
	}
	if s, ok := c.procedures.ExtendedAdvertisingSet(p.AdvertisingHandle); ok && s.Enabled {
		return 0, hci.ErrDisallowed
	}

	c.params.extAdvParams[p.AdvertisingHandle] = p
	c.procedures.SetExtendedAdvertisingState(p.AdvertisingHandle, false,
		policy.AdvertisingFilterPolicy(p.AdvertisingFilterPolicy))

	return selectTxPower(p.AdvertisingTxPower), nil
}

func selectTxPower(v int8) int8 {
	switch {
	case v == txPowerNoPreference:
		return 0
	case v < txPowerMin:
		return txPowerMin
	case v > txPowerMax:
		return txPowerMax
	default:
		return v
	}
}

// SetExtendedAdvertisingEnable enables or disables the listed sets. Disabling
// with no sets disables every set. Nothing changes unless every handle is known.
func (c *LinkLayerController) SetExtendedAdvertisingEnable(enable bool, sets []cmd.AdvertisingSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(sets) == 0 {
		if enable {
			return hci.ErrInvalidParameters
		}
		for _, h := range c.procedures.Handles() {
			c.setExtendedAdvertisingEnabled(h, false)
		}
		c.logger.Debug("extended advertising disabled for all sets")
		return nil
	}

	seen := map[uint8]bool{}
	for _, s := range sets {
		if seen[s.AdvertisingHandle] {
			return hci.ErrInvalidParameters
		}
		seen[s.AdvertisingHandle] = true

		if _, ok := c.params.extAdvParams[s.AdvertisingHandle]; !ok {
			return hci.ErrUnknownAdvertisingIdentifier
		}
	}

	for _, s := range sets {
		c.setExtendedAdvertisingEnabled(s.AdvertisingHandle, enable)
		c.logger.Debugf("extended advertising enable %v for set %v", enable, s.AdvertisingHandle)
	}
	return nil
}

func (c *LinkLayerController) setExtendedAdvertisingEnabled(handle uint8, enable bool) {
	p := c.params.extAdvParams[handle]
	c.procedures.SetExtendedAdvertisingState(handle, enable,
		policy.AdvertisingFilterPolicy(p.AdvertisingFilterPolicy))
}

// RemoveAdvertisingSet deletes a disabled advertising set.
func (c *LinkLayerController) RemoveAdvertisingSet(handle uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.procedures.ExtendedAdvertisingSet(handle)
	if !ok {
		return hci.ErrUnknownAdvertisingIdentifier
	}
	if s.Enabled {
		return hci.ErrDisallowed
	}

	delete(c.params.extAdvParams, handle)
	c.procedures.RemoveExtendedAdvertisingSet(handle)
	c.logger.Debugf("advertising set %v removed", handle)
	return nil
}

// ClearAdvertisingSets deletes every advertising set, provided none is enabled.
func (c *LinkLayerController) ClearAdvertisingSets() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range c.procedures.Handles() {
		if s, _ := c.procedures.ExtendedAdvertisingSet(h); s.Enabled {
			return hci.ErrDisallowed
		}
	}

	c.params.extAdvParams = make(map[uint8]cmd.LESetExtendedAdvertisingParameters)
	c.procedures.ClearExtendedAdvertisingSets()
	c.logger.Debug("advertising sets cleared")
	return nil
}

// CreateConnection enables the initiator. The simulator never completes the
// connection; the initiator stays enabled until CreateConnectionCancel or Reset.
func (c *LinkLayerController) CreateConnection(p cmd.LECreateConnection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := hci.ValidateConnParams(p); err != nil {
		c.logger.Debugf("create connection: %v", err)
		return hci.ErrInvalidParameters
	}
	if c.procedures.InitiatorState().Enabled {
		return hci.ErrDisallowed
	}

	c.params.connParams = p
	ip := policy.InitiatorFilterPolicy(p.InitiatorFilterPolicy)
	c.procedures.SetInitiatorState(true, ip)
	c.logger.Debugf("initiator enabled, filter policy %v", ip)
	return nil
}

// CreateConnectionCancel disables a pending initiator.
func (c *LinkLayerController) CreateConnectionCancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.procedures.InitiatorState()
	if !s.Enabled {
		return hci.ErrDisallowed
	}

	c.procedures.SetInitiatorState(false, s.Policy)
	c.logger.Debug("initiator cancelled")
	return nil
}
