package controller

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/hci"
	"github.com/rigado/blesim/hci/cmd"
	"github.com/rigado/blesim/hci/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addr1 = blesim.AddrFromUint64(1)
	addr2 = blesim.AddrFromUint64(2)
)

func newTestController(t *testing.T, opts ...blesim.Option) *LinkLayerController {
	t.Helper()
	c, err := NewLinkLayerController(opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func scanParams(p policy.ScanFilterPolicy) cmd.LESetScanParameters {
	return cmd.LESetScanParameters{
		LEScanType:           hci.LEScanTypePassive,
		LEScanInterval:       0x0010,
		LEScanWindow:         0x0010,
		ScanningFilterPolicy: uint8(p),
	}
}

func advParams(p policy.AdvertisingFilterPolicy) cmd.LESetAdvertisingParameters {
	return cmd.LESetAdvertisingParameters{
		AdvertisingIntervalMin:  0x0800,
		AdvertisingIntervalMax:  0x0800,
		AdvertisingChannelMap:   0x07,
		AdvertisingFilterPolicy: uint8(p),
	}
}

func extAdvParams(handle uint8, p policy.AdvertisingFilterPolicy) cmd.LESetExtendedAdvertisingParameters {
	return cmd.LESetExtendedAdvertisingParameters{
		AdvertisingHandle:             handle,
		PrimaryAdvertisingIntervalMin: cmd.PutInterval24(0x0800),
		PrimaryAdvertisingIntervalMax: cmd.PutInterval24(0x0800),
		PrimaryAdvertisingChannelMap:  0x07,
		AdvertisingFilterPolicy:       uint8(p),
		AdvertisingTxPower:            txPowerNoPreference,
		PrimaryAdvertisingPHY:         0x01,
		SecondaryAdvertisingPHY:       0x01,
	}
}

func connParams(p policy.InitiatorFilterPolicy) cmd.LECreateConnection {
	return cmd.LECreateConnection{
		LEScanInterval:        0x0010,
		LEScanWindow:          0x0010,
		InitiatorFilterPolicy: uint8(p),
		ConnIntervalMin:       0x0018,
		ConnIntervalMax:       0x0018,
		SupervisionTimeout:    0x0048,
	}
}

func TestAddIsIdempotent(t *testing.T) {
	c := newTestController(t)

	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, 1, c.FilterAcceptListLen())
}

func TestRemoveAbsentSucceeds(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr2))
	assert.Equal(t, 1, c.FilterAcceptListLen())
}

func TestCapacity(t *testing.T) {
	c := newTestController(t, blesim.OptAcceptListSize(3))

	for i := uint64(1); i <= 3; i++ {
		require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, blesim.AddrFromUint64(i)))
	}
	assert.Equal(t, CapacityExceeded, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, blesim.AddrFromUint64(4)))
	assert.Equal(t, 3, c.FilterAcceptListLen())

	// an entry already present is not a capacity failure
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, blesim.AddrFromUint64(2)))
	assert.Equal(t, 3, c.GetFilterAcceptListSize())
}

func TestZeroCapacity(t *testing.T) {
	c := newTestController(t, blesim.OptAcceptListSize(0))

	assert.Equal(t, CapacityExceeded, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, 0, c.FilterAcceptListLen())
	assert.Equal(t, 0, c.GetFilterAcceptListSize())
}

func TestAddressTypeSensitivity(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypeRandom, addr1))
	assert.Equal(t, 1, c.FilterAcceptListLen())
	assert.True(t, c.FilterAcceptListContains(blesim.AddrTypePublic, addr1))
	assert.False(t, c.FilterAcceptListContains(blesim.AddrTypeRandom, addr1))
}

func TestScanGating(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	require.NoError(t, c.SetScanParameters(scanParams(policy.ScanAcceptListOnly)))
	require.NoError(t, c.SetScanEnable(true))

	assert.Equal(t, Disallowed, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr2))
	assert.Equal(t, Disallowed, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, Disallowed, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, Disallowed, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypeRandom, addr2))
	assert.Equal(t, Disallowed, c.ClearFilterAcceptList())
	assert.Equal(t, []blesim.Addr{addr1}, addrs(c))

	// reading the size is never gated
	assert.Equal(t, defaultAcceptListSize, c.GetFilterAcceptListSize())

	require.NoError(t, c.SetScanEnable(false))
	assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, 0, c.FilterAcceptListLen())
}

func TestScanWithoutListPolicyDoesNotGate(t *testing.T) {
	for _, p := range []policy.ScanFilterPolicy{policy.ScanAcceptAll, policy.ScanAcceptAllAndResolve} {
		c := newTestController(t)
		require.NoError(t, c.SetScanParameters(scanParams(p)))
		require.NoError(t, c.SetScanEnable(true))

		assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1), "policy %v", p)
		assert.Equal(t, Success, c.ClearFilterAcceptList(), "policy %v", p)
	}
}

func TestScanParametersLockedWhileScanning(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetScanEnable(true))

	assert.Equal(t, hci.ErrDisallowed, c.SetScanParameters(scanParams(policy.ScanAcceptListOnly)))
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
}

func TestLegacyAdvertisingGating(t *testing.T) {
	for _, p := range []policy.AdvertisingFilterPolicy{
		policy.AdvAcceptListForScan,
		policy.AdvAcceptListForConnect,
		policy.AdvAcceptListForBoth,
	} {
		c := newTestController(t)
		require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
		require.NoError(t, c.SetAdvertisingParameters(advParams(p)))
		require.NoError(t, c.SetAdvertisingEnable(true))

		assert.Equal(t, Disallowed, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1), "policy %v", p)
		assert.Equal(t, 1, c.FilterAcceptListLen())

		require.NoError(t, c.SetAdvertisingEnable(false))
		assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1), "policy %v", p)
	}
}

func TestLegacyAdvertisingAllDevicesDoesNotGate(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetAdvertisingParameters(advParams(policy.AdvAllDevices)))
	require.NoError(t, c.SetAdvertisingEnable(true))

	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypeRandom, addr1))
}

func TestExtendedAdvertisingGatingPerHandle(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	_, err := c.SetExtendedAdvertisingParameters(extAdvParams(0, policy.AdvAcceptListForBoth))
	require.NoError(t, err)
	_, err = c.SetExtendedAdvertisingParameters(extAdvParams(1, policy.AdvAcceptListForScan))
	require.NoError(t, err)
	_, err = c.SetExtendedAdvertisingParameters(extAdvParams(2, policy.AdvAllDevices))
	require.NoError(t, err)

	// configured but disabled sets do not gate
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr2))

	// an enabled set without a list policy does not gate
	require.NoError(t, c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 2}}))
	assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr2))

	require.NoError(t, c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 1}}))
	assert.Equal(t, Disallowed, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))

	require.NoError(t, c.SetExtendedAdvertisingEnable(false, []cmd.AdvertisingSet{{AdvertisingHandle: 1}}))
	assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, 0, c.FilterAcceptListLen())
}

func TestExtendedAdvertisingSetRemoval(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	_, err := c.SetExtendedAdvertisingParameters(extAdvParams(1, policy.AdvAcceptListForScan))
	require.NoError(t, err)
	require.NoError(t, c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 1}}))

	assert.Equal(t, hci.ErrDisallowed, c.RemoveAdvertisingSet(1))
	assert.Equal(t, hci.ErrDisallowed, c.ClearAdvertisingSets())
	assert.Equal(t, Disallowed, c.ClearFilterAcceptList())

	// disabling with no sets disables all of them
	require.NoError(t, c.SetExtendedAdvertisingEnable(false, nil))
	require.NoError(t, c.RemoveAdvertisingSet(1))
	assert.Equal(t, hci.ErrUnknownAdvertisingIdentifier, c.RemoveAdvertisingSet(1))
	assert.Equal(t, Success, c.ClearFilterAcceptList())
}

func TestExtendedAdvertisingEnableChecksEveryHandle(t *testing.T) {
	c := newTestController(t)
	_, err := c.SetExtendedAdvertisingParameters(extAdvParams(1, policy.AdvAcceptListForScan))
	require.NoError(t, err)

	err = c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 1}, {AdvertisingHandle: 7}})
	assert.Equal(t, hci.ErrUnknownAdvertisingIdentifier, err)

	// set 1 must not have been enabled
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	err = c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 1}, {AdvertisingHandle: 1}})
	assert.Equal(t, hci.ErrInvalidParameters, err)
	assert.Equal(t, hci.ErrInvalidParameters, c.SetExtendedAdvertisingEnable(true, nil))
}

func TestExtendedAdvertisingParametersLockedWhileEnabled(t *testing.T) {
	c := newTestController(t)
	txp, err := c.SetExtendedAdvertisingParameters(extAdvParams(1, policy.AdvAllDevices))
	require.NoError(t, err)
	assert.Equal(t, int8(0), txp)

	require.NoError(t, c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 1}}))
	_, err = c.SetExtendedAdvertisingParameters(extAdvParams(1, policy.AdvAcceptListForBoth))
	assert.Equal(t, hci.ErrDisallowed, err)

	// the set keeps its original policy
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
}

func TestSelectTxPower(t *testing.T) {
	assert.Equal(t, int8(0), selectTxPower(txPowerNoPreference))
	assert.Equal(t, int8(20), selectTxPower(100))
	assert.Equal(t, int8(-127), selectTxPower(-128))
	assert.Equal(t, int8(-4), selectTxPower(-4))
}

func TestInitiatorGating(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	require.NoError(t, c.CreateConnection(connParams(policy.InitiatorAcceptListOnly)))
	assert.Equal(t, hci.ErrDisallowed, c.CreateConnection(connParams(policy.InitiatorAcceptListOnly)))
	assert.Equal(t, Disallowed, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr2))

	require.NoError(t, c.CreateConnectionCancel())
	assert.Equal(t, hci.ErrDisallowed, c.CreateConnectionCancel())
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr2))

	require.NoError(t, c.CreateConnection(connParams(policy.InitiatorAllDevices)))
	assert.Equal(t, Success, c.ClearFilterAcceptList())
}

func TestInvalidParametersRejected(t *testing.T) {
	c := newTestController(t)

	sp := scanParams(policy.ScanAcceptListOnly)
	sp.LEScanWindow = sp.LEScanInterval + 1
	assert.Equal(t, hci.ErrInvalidParameters, c.SetScanParameters(sp))

	assert.Equal(t, hci.ErrInvalidParameters, c.SetScanParameters(scanParams(policy.ScanFilterPolicy(4))))
	assert.Equal(t, hci.ErrInvalidParameters, c.SetAdvertisingParameters(advParams(policy.AdvertisingFilterPolicy(4))))

	_, err := c.SetExtendedAdvertisingParameters(extAdvParams(hci.ExtAdvHandleMax+1, policy.AdvAllDevices))
	assert.Equal(t, hci.ErrInvalidParameters, err)

	cp := connParams(policy.InitiatorAcceptListOnly)
	cp.SupervisionTimeout = 0x0005
	assert.Equal(t, hci.ErrInvalidParameters, c.CreateConnection(cp))

	// rejected parameters leave the scan policy untouched
	require.NoError(t, c.SetScanEnable(true))
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
}

func TestScenarioAddRemove(t *testing.T) {
	c := newTestController(t)

	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, 0, c.FilterAcceptListLen())
}

func TestScenarioRemoveOtherType(t *testing.T) {
	c := newTestController(t)

	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, Success, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypeRandom, addr1))
	assert.Equal(t, 1, c.FilterAcceptListLen())
	assert.True(t, c.FilterAcceptListContains(blesim.AddrTypePublic, addr1))
}

func TestScenarioRemoveWhileScanning(t *testing.T) {
	c := newTestController(t)

	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	require.NoError(t, c.SetScanParameters(scanParams(policy.ScanAcceptListOnly)))
	require.NoError(t, c.SetScanEnable(true))
	assert.Equal(t, Disallowed, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))
	assert.Equal(t, 1, c.FilterAcceptListLen())
}

func TestReset(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	require.NoError(t, c.SetScanParameters(scanParams(policy.ScanAcceptListOnly)))
	require.NoError(t, c.SetScanEnable(true))
	_, err := c.SetExtendedAdvertisingParameters(extAdvParams(3, policy.AdvAcceptListForBoth))
	require.NoError(t, err)

	c.Reset()

	assert.Equal(t, 0, c.FilterAcceptListLen())
	assert.Equal(t, hci.ErrUnknownAdvertisingIdentifier, c.RemoveAdvertisingSet(3))

	// scan parameters are back to accept all
	require.NoError(t, c.SetScanEnable(true))
	assert.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
}

func TestOutcomeStatus(t *testing.T) {
	assert.Equal(t, uint8(0x00), Success.Status())
	assert.Equal(t, uint8(0x0C), Disallowed.Status())
	assert.Equal(t, uint8(0x07), CapacityExceeded.Status())
	assert.Nil(t, Success.Err())
}

func TestMetrics(t *testing.T) {
	c := newTestController(t, blesim.OptAcceptListSize(1))

	added := testutil.ToFloat64(commandsTotal.WithLabelValues("add", Success.String()))
	full := testutil.ToFloat64(commandsTotal.WithLabelValues("add", CapacityExceeded.String()))
	blocked := testutil.ToFloat64(commandsTotal.WithLabelValues("remove", Disallowed.String()))

	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))
	require.Equal(t, CapacityExceeded, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr2))
	require.NoError(t, c.SetScanParameters(scanParams(policy.ScanAcceptListOnly)))
	require.NoError(t, c.SetScanEnable(true))
	require.Equal(t, Disallowed, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))

	assert.Equal(t, added+1, testutil.ToFloat64(commandsTotal.WithLabelValues("add", Success.String())))
	assert.Equal(t, full+1, testutil.ToFloat64(commandsTotal.WithLabelValues("add", CapacityExceeded.String())))
	assert.Equal(t, blocked+1, testutil.ToFloat64(commandsTotal.WithLabelValues("remove", Disallowed.String())))
	assert.Equal(t, float64(1), testutil.ToFloat64(acceptListEntries.WithLabelValues(c.ID())))
}

func TestCloseDropsMetrics(t *testing.T) {
	c, err := NewLinkLayerController()
	require.NoError(t, err)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	c.Close()
	assert.False(t, acceptListEntries.DeleteLabelValues(c.ID()))
}

func TestExtendedAdvertisingLegacyPDUs(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypePublic, addr1))

	// legacy ADV_IND with zero intervals, listed scan, tx power 0x70
	txp, err := c.SetExtendedAdvertisingParameters(cmd.LESetExtendedAdvertisingParameters{
		AdvertisingHandle:          1,
		AdvertisingEventProperties: 0x0013,
		OwnAddressType:             hci.AddressTypePublic,
		PeerAddressType:            hci.AddressTypePublic,
		AdvertisingFilterPolicy:    uint8(policy.AdvAcceptListForScan),
		AdvertisingTxPower:         0x70,
	})
	require.NoError(t, err)
	assert.Equal(t, int8(txPowerMax), txp)

	require.NoError(t, c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 1}}))
	assert.Equal(t, Disallowed, c.RemoveDeviceFromFilterAcceptList(blesim.AddrTypePublic, addr1))
}

func addrs(c *LinkLayerController) []blesim.Addr {
	var out []blesim.Addr
	for _, e := range c.FilterAcceptListEntries() {
		out = append(out, e.Addr)
	}
	return out
}
