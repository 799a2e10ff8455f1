package controller

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/cache"
)

var errBuilt = errors.New("options can only be set while the controller is constructed")

// SetAcceptListSize sets the filter accept list capacity. The HCI read size
// command reports it in one byte.
func (c *LinkLayerController) SetAcceptListSize(n int) error {
	if c.built {
		return errBuilt
	}
	if n < 0 || n > 0xff {
		return fmt.Errorf("invalid accept list size %v", n)
	}
	c.acceptListSize = n
	return nil
}

// SetResolvingListSize records the resolving list capacity. It has no
// bearing on the accept list.
func (c *LinkLayerController) SetResolvingListSize(n int) error {
	if c.built {
		return errBuilt
	}
	if n < 0 || n > 0xff {
		return fmt.Errorf("invalid resolving list size %v", n)
	}
	c.resolvingListSize = n
	return nil
}

func (c *LinkLayerController) SetAddress(a blesim.Addr) error {
	if c.built {
		return errBuilt
	}
	c.addr = a
	return nil
}

func (c *LinkLayerController) SetLogger(l blesim.Logger) error {
	if c.built {
		return errBuilt
	}
	if l == nil {
		return fmt.Errorf("nil logger")
	}
	c.logger = l
	return nil
}

func (c *LinkLayerController) SetMetricsRegisterer(r prometheus.Registerer) error {
	if c.built {
		return errBuilt
	}
	c.registerer = r
	return nil
}

func (c *LinkLayerController) SetSnapshotFile(path string) error {
	if c.built {
		return errBuilt
	}
	if path == "" {
		return fmt.Errorf("empty snapshot path")
	}
	c.cache = cache.New(path)
	return nil
}
