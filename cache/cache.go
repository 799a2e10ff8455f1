package cache

import (
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/hci/acceptlist"
	"github.com/rigado/blesim/hci/procedure"
)

// Snapshot is a point-in-time dump of a controller's accept list and
// procedure states, for diagnostics.
type Snapshot struct {
	Controller          string                               `json:"controller"`
	Address             blesim.Addr                          `json:"address"`
	AcceptListCapacity  int                                  `json:"acceptListCapacity"`
	AcceptList          []acceptlist.Entry                   `json:"acceptList"`
	Scan                procedure.ScanState                  `json:"scan"`
	LegacyAdvertising   procedure.AdvertisingState           `json:"legacyAdvertising"`
	ExtendedAdvertising map[uint8]procedure.AdvertisingState `json:"extendedAdvertising"`
	Initiator           procedure.InitiatorState             `json:"initiator"`
	Blocking            []string                             `json:"blocking,omitempty"`
}

type SnapshotStore interface {
	Store(Snapshot) error
	Load() (Snapshot, error)
	Clear() error
}

type snapshotCache struct {
	filename string
	lock     sync.RWMutex
}

func New(filename string) SnapshotStore {
	sc := snapshotCache{
		filename: filename,
	}

	return &sc
}

func (sc *snapshotCache) Store(s Snapshot) error {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	out, err := jsoniter.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "can't encode snapshot")
	}

	return errors.Wrapf(ioutil.WriteFile(sc.filename, out, 0644), "can't write %s", sc.filename)
}

func (sc *snapshotCache) Load() (Snapshot, error) {
	sc.lock.RLock()
	defer sc.lock.RUnlock()

	in, err := ioutil.ReadFile(sc.filename)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "can't read %s", sc.filename)
	}

	var s Snapshot
	err = jsoniter.Unmarshal(in, &s)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "can't decode %s", sc.filename)
	}

	return s, nil
}

func (sc *snapshotCache) Clear() error {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	err := os.Remove(sc.filename)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
