package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/hci"
	"github.com/rigado/blesim/hci/cmd"
	"github.com/rigado/blesim/hci/controller"
	"github.com/rigado/blesim/hci/h4"
	"github.com/rigado/blesim/hci/host"
)

// replayer runs a line oriented command script through an HCI host and
// prints the status of every command:
//
//	add public 00:00:00:00:00:01
//	scan on 1
//	remove public 00:00:00:00:00:01
//	extadv on 1 3
//
// Blank lines and lines starting with # are skipped.
type replayer struct {
	h   *host.Host
	out io.Writer

	// number of listed entries; nil for a remote controller
	count func() int
}

// localHost connects a host to c through an in-process H4 pipe.
func localHost(c *controller.LinkLayerController) (*host.Host, func()) {
	hs, cs := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	go h4.NewServer(c, nil).Serve(ctx, cs)

	h := host.New(hs, nil)
	return h, func() {
		h.Close()
		cancel()
	}
}

func (r *replayer) run(in io.Reader) error {
	s := bufio.NewScanner(in)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		res, err := r.exec(strings.Fields(line))
		if err != nil {
			return errors.Wrapf(err, "line %v", n)
		}
		fmt.Fprintf(r.out, "%v: %v -> %v\n", n, line, res)
	}
	return errors.Wrap(s.Err(), "can't read script")
}

func (r *replayer) exec(f []string) (string, error) {
	switch f[0] {
	case "add", "remove":
		if len(f) != 3 {
			return "", fmt.Errorf("usage: %v TYPE ADDRESS", f[0])
		}
		t, err := blesim.ParseAddrType(f[1])
		if err != nil {
			return "", err
		}
		a, err := blesim.NewAddr(f[2])
		if err != nil {
			return "", err
		}
		if f[0] == "add" {
			return status(r.h.Send(&cmd.LEAddDeviceToFilterAcceptList{AddressType: uint8(t), Address: a}, nil))
		}
		return status(r.h.Send(&cmd.LERemoveDeviceFromFilterAcceptList{AddressType: uint8(t), Address: a}, nil))

	case "clear":
		return status(r.h.Send(&cmd.LEClearFilterAcceptList{}, nil))

	case "reset":
		return status(r.h.Send(&cmd.Reset{}, nil))

	case "size":
		rp := cmd.LEReadFilterAcceptListSizeRP{}
		if err := r.h.Send(&cmd.LEReadFilterAcceptListSize{}, &rp); err != nil {
			return status(err)
		}
		if r.count == nil {
			return fmt.Sprintf("%v", rp.FilterAcceptListSize), nil
		}
		return fmt.Sprintf("%v of %v", r.count(), rp.FilterAcceptListSize), nil

	case "scan":
		return r.toggle(f, func(p uint8) error {
			sp := &cmd.LESetScanParameters{
				LEScanInterval:       0x0010,
				LEScanWindow:         0x0010,
				ScanningFilterPolicy: p,
			}
			if err := r.h.Send(sp, nil); err != nil {
				return err
			}
			return r.h.Send(&cmd.LESetScanEnable{LEScanEnable: 1}, nil)
		}, func() error {
			return r.h.Send(&cmd.LESetScanEnable{LEScanEnable: 0}, nil)
		})

	case "adv":
		return r.toggle(f, func(p uint8) error {
			ap := &cmd.LESetAdvertisingParameters{
				AdvertisingIntervalMin:  0x0800,
				AdvertisingIntervalMax:  0x0800,
				AdvertisingChannelMap:   0x07,
				AdvertisingFilterPolicy: p,
			}
			if err := r.h.Send(ap, nil); err != nil {
				return err
			}
			return r.h.Send(&cmd.LESetAdvertiseEnable{AdvertisingEnable: 1}, nil)
		}, func() error {
			return r.h.Send(&cmd.LESetAdvertiseEnable{AdvertisingEnable: 0}, nil)
		})

	case "connect":
		return r.toggle(f, func(p uint8) error {
			return r.h.Send(&cmd.LECreateConnection{
				LEScanInterval:        0x0010,
				LEScanWindow:          0x0010,
				InitiatorFilterPolicy: p,
				ConnIntervalMin:       0x0018,
				ConnIntervalMax:       0x0028,
				SupervisionTimeout:    0x01f4,
			}, nil)
		}, func() error {
			return r.h.Send(&cmd.LECreateConnectionCancel{}, nil)
		})

	case "extadv":
		return r.extadv(f)

	default:
		return "", fmt.Errorf("unknown command %q", f[0])
	}
}

// toggle handles "NAME on POLICY" and "NAME off".
func (r *replayer) toggle(f []string, on func(p uint8) error, off func() error) (string, error) {
	switch {
	case len(f) == 3 && f[1] == "on":
		p, err := parseUint8(f[2])
		if err != nil {
			return "", err
		}
		return status(on(p))

	case len(f) == 2 && f[1] == "off":
		return status(off())

	default:
		return "", fmt.Errorf("usage: %v on POLICY | %v off", f[0], f[0])
	}
}

func (r *replayer) extadv(f []string) (string, error) {
	if len(f) < 3 {
		return "", fmt.Errorf("usage: extadv on HANDLE POLICY | extadv off HANDLE | extadv remove HANDLE")
	}
	h, err := parseUint8(f[2])
	if err != nil {
		return "", err
	}
	sets := []cmd.AdvertisingSet{{AdvertisingHandle: h}}

	switch {
	case f[1] == "on" && len(f) == 4:
		p, err := parseUint8(f[3])
		if err != nil {
			return "", err
		}
		ep := &cmd.LESetExtendedAdvertisingParameters{
			AdvertisingHandle:             h,
			PrimaryAdvertisingIntervalMin: cmd.PutInterval24(0x0800),
			PrimaryAdvertisingIntervalMax: cmd.PutInterval24(0x0800),
			PrimaryAdvertisingChannelMap:  0x07,
			AdvertisingFilterPolicy:       p,
			AdvertisingTxPower:            0x7f,
			PrimaryAdvertisingPHY:         0x01,
			SecondaryAdvertisingPHY:       0x01,
		}
		if err := r.h.Send(ep, &cmd.LESetExtendedAdvertisingParametersRP{}); err != nil {
			return status(err)
		}
		return status(r.h.Send(&cmd.LESetExtendedAdvertisingEnable{Enable: 1, Sets: sets}, nil))

	case f[1] == "off" && len(f) == 3:
		return status(r.h.Send(&cmd.LESetExtendedAdvertisingEnable{Enable: 0, Sets: sets}, nil))

	case f[1] == "remove" && len(f) == 3:
		return status(r.h.Send(&cmd.LERemoveAdvertisingSet{AdvertisingHandle: h}, nil))

	default:
		return "", fmt.Errorf("unknown extadv form %q", strings.Join(f, " "))
	}
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid value %q", s)
	}
	return uint8(v), nil
}

// status renders a command status. Transport failures end the replay.
func status(err error) (string, error) {
	switch err.(type) {
	case nil:
		return "success", nil
	case hci.ErrCommand:
		return err.Error(), nil
	default:
		return "", err
	}
}
