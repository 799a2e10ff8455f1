// Package config loads simulated controller properties from the environment.
package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/rigado/blesim"
)

// Properties are the controller properties that stay fixed for the
// lifetime of a controller.
type Properties struct {
	// capacity of the filter accept list
	AcceptListSize int `envconfig:"BLESIM_ACCEPT_LIST_SIZE" default:"16"`

	// capacity of the resolving list; independent of the accept list
	ResolvingListSize int `envconfig:"BLESIM_RESOLVING_LIST_SIZE" default:"8"`

	Address  string `envconfig:"BLESIM_ADDRESS" default:"00:00:00:00:00:00"`
	LogLevel string `envconfig:"BLESIM_LOG_LEVEL" default:"info"`

	// where SaveSnapshot writes; empty disables snapshots
	SnapshotFile string `envconfig:"BLESIM_SNAPSHOT_FILE" default:""`
}

// Load reads Properties from the environment.
func Load() (*Properties, error) {
	var p Properties
	if err := envconfig.Process("", &p); err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if p.AcceptListSize < 0 || p.AcceptListSize > 0xff {
		return nil, errors.Errorf("invalid accept list size %v", p.AcceptListSize)
	}
	if p.ResolvingListSize < 0 || p.ResolvingListSize > 0xff {
		return nil, errors.Errorf("invalid resolving list size %v", p.ResolvingListSize)
	}
	return &p, nil
}

// Options converts the properties into controller options.
func (p *Properties) Options() ([]blesim.Option, error) {
	a, err := blesim.NewAddr(p.Address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid BLESIM_ADDRESS")
	}

	opts := []blesim.Option{
		blesim.OptAcceptListSize(p.AcceptListSize),
		blesim.OptResolvingListSize(p.ResolvingListSize),
		blesim.OptAddress(a),
	}
	if p.SnapshotFile != "" {
		opts = append(opts, blesim.OptSnapshotFile(p.SnapshotFile))
	}
	return opts, nil
}
