package blesim

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ControllerOption is an interface which the controller should implement to allow using configuration options.
// Options only apply while the controller is being constructed.
type ControllerOption interface {
	SetAcceptListSize(int) error
	SetResolvingListSize(int) error
	SetAddress(Addr) error
	SetLogger(Logger) error
	SetMetricsRegisterer(prometheus.Registerer) error
	SetSnapshotFile(string) error
}

// An Option is a configuration function, which configures the controller.
type Option func(ControllerOption) error

// OptAcceptListSize sets the capacity of the filter accept list.
func OptAcceptListSize(n int) Option {
	return func(opt ControllerOption) error {
		return opt.SetAcceptListSize(n)
	}
}

// OptResolvingListSize sets the capacity of the resolving list.
// The resolving list is independent of the accept list.
func OptResolvingListSize(n int) Option {
	return func(opt ControllerOption) error {
		return opt.SetResolvingListSize(n)
	}
}

// OptAddress sets the controller public address.
func OptAddress(a Addr) Option {
	return func(opt ControllerOption) error {
		return opt.SetAddress(a)
	}
}

// OptLogger overrides the package logger for one controller.
func OptLogger(l Logger) Option {
	return func(opt ControllerOption) error {
		return opt.SetLogger(l)
	}
}

// OptMetricsRegisterer registers the controller collectors with r.
func OptMetricsRegisterer(r prometheus.Registerer) Option {
	return func(opt ControllerOption) error {
		return opt.SetMetricsRegisterer(r)
	}
}

// OptSnapshotFile sets where SaveSnapshot writes the controller state.
func OptSnapshotFile(path string) Option {
	return func(opt ControllerOption) error {
		return opt.SetSnapshotFile(path)
	}
}
