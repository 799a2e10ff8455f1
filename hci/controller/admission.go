package controller

import (
	"fmt"

	"github.com/rigado/blesim"
	"github.com/rigado/blesim/hci"
	"github.com/rigado/blesim/hci/acceptlist"
)

// Outcome is the result of a filter accept list command.
type Outcome int

const (
	Success Outcome = iota
	Disallowed
	CapacityExceeded
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Disallowed:
		return "disallowed"
	case CapacityExceeded:
		return "capacity exceeded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Err returns nil for Success and the matching HCI error code otherwise.
func (o Outcome) Err() error {
	switch o {
	case Success:
		return nil
	case Disallowed:
		return hci.ErrDisallowed
	case CapacityExceeded:
		return hci.ErrMemoryCapacity
	default:
		return hci.ErrUnspecified
	}
}

// Status is the wire status byte of o.
func (o Outcome) Status() uint8 {
	return hci.Status(o.Err())
}

// AddDeviceToFilterAcceptList adds the device unless an enabled procedure
// filters on the list. Adding a device that is already listed succeeds.
func (c *LinkLayerController) AddDeviceToFilterAcceptList(t blesim.AddrType, a blesim.Addr) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := acceptlist.Entry{Type: t, Addr: a}
	if o, blocked := c.checkDisallowed("add", e); blocked {
		return o
	}

	o := Success
	switch r := c.acceptList.Add(e); r {
	case acceptlist.Full:
		c.logger.Debugf("add %v: accept list full (%v entries)", e, c.acceptList.Size())
		o = CapacityExceeded
	default:
		c.logger.Debugf("add %v: %v", e, r)
	}
	return c.finish("add", o)
}

// RemoveDeviceFromFilterAcceptList removes the device unless an enabled
// procedure filters on the list. Removing a device that is not listed, under
// either address type, succeeds and leaves the list unchanged.
func (c *LinkLayerController) RemoveDeviceFromFilterAcceptList(t blesim.AddrType, a blesim.Addr) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := acceptlist.Entry{Type: t, Addr: a}
	if o, blocked := c.checkDisallowed("remove", e); blocked {
		return o
	}

	r := c.acceptList.Remove(e)
	c.logger.Debugf("remove %v: %v", e, r)
	return c.finish("remove", Success)
}

// ClearFilterAcceptList empties the list unless an enabled procedure filters on it.
func (c *LinkLayerController) ClearFilterAcceptList() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o, blocked := c.checkDisallowed("clear", nil); blocked {
		return o
	}

	c.acceptList.Clear()
	c.logger.Debug("accept list cleared")
	return c.finish("clear", Success)
}

// GetFilterAcceptListSize returns the total number of entries the list can
// hold. It is never disallowed.
func (c *LinkLayerController) GetFilterAcceptListSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	commandsTotal.WithLabelValues("read_size", Success.String()).Inc()
	return c.acceptList.MaxSize()
}

// FilterAcceptListLen returns how many entries are currently listed.
func (c *LinkLayerController) FilterAcceptListLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptList.Size()
}

// FilterAcceptListContains reports whether the exact (type, address) pair is listed.
func (c *LinkLayerController) FilterAcceptListContains(t blesim.AddrType, a blesim.Addr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptList.Contains(acceptlist.Entry{Type: t, Addr: a})
}

// FilterAcceptListEntries returns the listed entries in insertion order.
func (c *LinkLayerController) FilterAcceptListEntries() []acceptlist.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptList.Entries()
}

// checkDisallowed runs before any store operation, so a no-op mutation is
// still reported as Disallowed while a dependent procedure is enabled.
// Must be called with mu held.
func (c *LinkLayerController) checkDisallowed(op string, subject interface{}) (Outcome, bool) {
	if !c.procedures.ActiveDependentProcedureExists() {
		return Success, false
	}
	if subject != nil {
		c.logger.Debugf("%v %v: disallowed, in use by %v", op, subject, c.procedures.ActiveDependentProcedures())
	} else {
		c.logger.Debugf("%v: disallowed, in use by %v", op, c.procedures.ActiveDependentProcedures())
	}
	return c.finish(op, Disallowed), true
}

func (c *LinkLayerController) finish(op string, o Outcome) Outcome {
	commandsTotal.WithLabelValues(op, o.String()).Inc()
	acceptListEntries.WithLabelValues(c.id).Set(float64(c.acceptList.Size()))
	return o
}
