package controller

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/cache"
	"github.com/rigado/blesim/hci/acceptlist"
	"github.com/rigado/blesim/hci/procedure"
)

const (
	defaultAcceptListSize    = 16
	defaultResolvingListSize = 8
)

type handlerFn func(b []byte) ([]byte, error)

// NewLinkLayerController returns a simulated LE controller with an empty
// filter accept list and every procedure disabled.
func NewLinkLayerController(opts ...blesim.Option) (*LinkLayerController, error) {
	c := &LinkLayerController{
		id:                uuid.New().String(),
		acceptListSize:    defaultAcceptListSize,
		resolvingListSize: defaultResolvingListSize,
		cmdh:              map[int]handlerFn{},
	}

	c.params.init()
	if err := c.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}

	if c.logger == nil {
		c.logger = blesim.GetLogger()
	}
	c.logger = c.logger.ChildLogger(map[string]interface{}{"controller": c.id})

	c.acceptList = acceptlist.New(c.acceptListSize)
	c.procedures = procedure.NewTracker()
	c.init()

	if c.registerer != nil {
		if err := RegisterMetrics(c.registerer); err != nil {
			return nil, errors.Wrap(err, "can't register metrics")
		}
	}
	acceptListEntries.WithLabelValues(c.id).Set(0)
	c.built = true

	c.logger.Debugf("controller %v up, accept list size %v, resolving list size %v",
		c.addr, c.acceptListSize, c.resolvingListSize)
	return c, nil
}

// LinkLayerController owns the filter accept list and the state of the
// procedures that may filter on it. Every exported method holds mu for its
// whole duration, so a check and the mutation it guards are atomic.
type LinkLayerController struct {
	mu sync.Mutex

	id   string
	addr blesim.Addr

	acceptListSize    int
	resolvingListSize int

	acceptList *acceptlist.Store
	procedures *procedure.Tracker

	params params

	// command handlers keyed by opcode
	cmdh map[int]handlerFn

	logger     blesim.Logger
	registerer prometheus.Registerer
	cache      cache.SnapshotStore

	// set once NewLinkLayerController returns; options are refused after
	built bool
}

// Option sets the options specified. It fails once the controller is built.
func (c *LinkLayerController) Option(opts ...blesim.Option) error {
	if c.built {
		return errBuilt
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

func (c *LinkLayerController) ID() string {
	return c.id
}

func (c *LinkLayerController) Addr() blesim.Addr {
	return c.addr
}

// Close drops the metrics series of the controller. The controller must not
// be used afterwards.
func (c *LinkLayerController) Close() {
	acceptListEntries.DeleteLabelValues(c.id)
	c.logger.Debug("closed")
}

// Reset returns the controller to its power-on state: accept list empty,
// every procedure disabled, parameters at their defaults.
func (c *LinkLayerController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *LinkLayerController) reset() {
	c.acceptList.Clear()
	c.procedures = procedure.NewTracker()
	c.params.init()
	acceptListEntries.WithLabelValues(c.id).Set(0)
	c.logger.Info("reset")
}

// Snapshot captures the current accept list and procedure states.
func (c *LinkLayerController) Snapshot() cache.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	ext := map[uint8]procedure.AdvertisingState{}
	for _, h := range c.procedures.Handles() {
		ext[h], _ = c.procedures.ExtendedAdvertisingSet(h)
	}

	return cache.Snapshot{
		Controller:          c.id,
		Address:             c.addr,
		AcceptListCapacity:  c.acceptList.MaxSize(),
		AcceptList:          c.acceptList.Entries(),
		Scan:                c.procedures.ScanState(),
		LegacyAdvertising:   c.procedures.LegacyAdvertisingState(),
		ExtendedAdvertising: ext,
		Initiator:           c.procedures.InitiatorState(),
		Blocking:            c.procedures.ActiveDependentProcedures(),
	}
}

// SnapshotEnabled reports whether a snapshot file was configured.
func (c *LinkLayerController) SnapshotEnabled() bool {
	return c.cache != nil
}

// SaveSnapshot writes Snapshot to the file set with blesim.OptSnapshotFile.
func (c *LinkLayerController) SaveSnapshot() error {
	if c.cache == nil {
		return errors.New("no snapshot file configured")
	}
	return c.cache.Store(c.Snapshot())
}
