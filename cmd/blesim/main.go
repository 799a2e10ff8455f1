package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/cache"
	"github.com/rigado/blesim/config"
	"github.com/rigado/blesim/hci/controller"
	"github.com/rigado/blesim/hci/h4"
	"github.com/rigado/blesim/hci/host"
	"github.com/urfave/cli"
	"gopkg.in/natefinch/lumberjack.v2"
)

var props *config.Properties

func main() {
	app := cli.NewApp()
	app.Name = "blesim"
	app.Usage = "simulated LE controller filter accept list"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "log-level", Usage: "log level, overrides BLESIM_LOG_LEVEL"},
		cli.StringFlag{Name: "log-file", Usage: "also write logs to this file, rotated"},
	}
	app.Before = setup
	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "serve HCI over H4 on a TCP port or a UART",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "listen", Value: ":6402", Usage: "TCP address to accept hosts on"},
				cli.StringFlag{Name: "uart", Usage: "serial port to serve instead of TCP"},
				cli.UintFlag{Name: "baud", Value: h4.DefaultSerialOptions().BaudRate, Usage: "UART baud rate"},
				cli.DurationFlag{Name: "timeout", Value: time.Second, Usage: "TCP read and write timeout"},
				cli.StringFlag{Name: "metrics", Usage: "address to serve /metrics on"},
			},
			Action: serve,
		},
		{
			Name:      "replay",
			Usage:     "run a command script against a fresh controller",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "connect", Usage: "replay against the H4 server at this TCP address"},
				cli.DurationFlag{Name: "timeout", Value: 2 * time.Second, Usage: "dial, read and write timeout for --connect"},
				cli.StringFlag{Name: "snapshot", Usage: "write the final state of the local controller to this file"},
			},
			Action: replay,
		},
		{
			Name:      "snapshot",
			Usage:     "print a saved snapshot",
			ArgsUsage: "FILE",
			Action:    printSnapshot,
		},
	}

	if err := app.Run(os.Args); err != nil {
		blesim.GetLogger().Error(err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) error {
	p, err := config.Load()
	if err != nil {
		return err
	}
	props = p

	level := props.LogLevel
	if c.GlobalIsSet("log-level") {
		level = c.GlobalString("log-level")
	}
	if err := blesim.SetLogLevel(level); err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}

	if fn := c.GlobalString("log-file"); fn != "" {
		rotator := &lumberjack.Logger{
			Filename:   fn,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		blesim.SetLogOutput(io.MultiWriter(os.Stderr, rotator))
	}
	return nil
}

func newController(opts ...blesim.Option) (*controller.LinkLayerController, error) {
	po, err := props.Options()
	if err != nil {
		return nil, err
	}
	return controller.NewLinkLayerController(append(po, opts...)...)
}

func serve(c *cli.Context) error {
	reg := prometheus.NewRegistry()
	ctrl, err := newController(blesim.OptMetricsRegisterer(reg))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if addr := c.String("metrics"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				blesim.GetLogger().Errorf("metrics: %v", err)
			}
		}()
		defer srv.Close()
	}

	if ctrl.SnapshotEnabled() {
		defer func() {
			if err := ctrl.SaveSnapshot(); err != nil {
				blesim.GetLogger().Error(err)
			}
		}()
	}

	s := h4.NewServer(ctrl, nil)
	if port := c.String("uart"); port != "" {
		so := h4.DefaultSerialOptions()
		so.PortName = port
		so.BaudRate = c.Uint("baud")
		sp, err := h4.NewSerial(so)
		if err != nil {
			return err
		}
		blesim.GetLogger().Infof("serving %v", port)
		return s.Serve(ctx, sp)
	}
	return s.ListenAndServe(ctx, c.String("listen"), c.Duration("timeout"))
}

func replay(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: blesim replay FILE", 2)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "can't open script")
	}
	defer f.Close()

	if addr := c.String("connect"); addr != "" {
		if c.IsSet("snapshot") {
			return cli.NewExitError("--snapshot needs a local controller", 2)
		}
		skt, err := h4.NewSocket(addr, c.Duration("timeout"))
		if err != nil {
			return err
		}
		h := host.New(skt, nil)
		defer h.Close()
		return (&replayer{h: h, out: os.Stdout}).run(f)
	}

	var opts []blesim.Option
	if fn := c.String("snapshot"); fn != "" {
		opts = append(opts, blesim.OptSnapshotFile(fn))
	}
	ctrl, err := newController(opts...)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	h, stop := localHost(ctrl)
	defer stop()

	r := &replayer{h: h, out: os.Stdout, count: ctrl.FilterAcceptListLen}
	if err := r.run(f); err != nil {
		return err
	}
	if ctrl.SnapshotEnabled() {
		return ctrl.SaveSnapshot()
	}
	return nil
}

func printSnapshot(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: blesim snapshot FILE", 2)
	}

	s, err := cache.New(c.Args().First()).Load()
	if err != nil {
		return err
	}
	b, err := jsoniter.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
