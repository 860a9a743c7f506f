// go-msp
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-msp.
//
// go-msp is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-msp is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-msp; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.


// Command mspquery reads and writes flight controller settings over MSP.
//
//	mspquery -list
//	mspquery -device /dev/ttyACM0 -domain blackbox
//	mspquery -domain blackbox -set p_denom=16 -save
//	mspquery -tcp 127.0.0.1:5760 -domain status -watch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-msp"
	"github.com/ZaparooProject/go-msp/config"
	"github.com/ZaparooProject/go-msp/polling"
	"github.com/ZaparooProject/go-msp/transport/tcp"
	"github.com/ZaparooProject/go-msp/transport/uart"
)

type cliFlags struct {
	devicePath *string
	tcpAddr    *string
	configPath *string
	domain     *string
	snapshot   *string
	timeout    *time.Duration
	save       *bool
	watch      *bool
	list       *bool
	debug      *bool
	sets       assignments
}

func parseFlags() *cliFlags {
	f := &cliFlags{
		devicePath: flag.String("device", "",
			"Serial device path (e.g., /dev/ttyACM0 or COM3). Leave empty for auto-detection."),
		tcpAddr:    flag.String("tcp", "", "host:port of a TCP MSP endpoint (SITL, wifi bridge)"),
		configPath: flag.String("config", "", "TOML configuration file"),
		domain:     flag.String("domain", "identity", "Config domain to read"),
		snapshot:   flag.String("snapshot", "", "Write the populated values to this CBOR file"),
		timeout:    flag.Duration("timeout", 0, "Per-request timeout (default from config, 1s)"),
		save:       flag.Bool("save", false, "Save the domain back to the flight controller"),
		watch:      flag.Bool("watch", false, "Keep refreshing the domain and print changes"),
		list:       flag.Bool("list", false, "List serial ports and exit"),
		debug:      flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Var(&f.sets, "set", "Set a property before saving, key=value (repeatable)")
	flag.Parse()
	return f
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{
		Out:        colorable.NewColorableStderr(),
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// mergeFlags lets explicit flags win over the file.
func mergeFlags(cfg *fileConfig, f *cliFlags) error {
	if *f.devicePath != "" {
		cfg.Device = *f.devicePath
		cfg.TCP = ""
	}
	if *f.tcpAddr != "" {
		if *f.devicePath != "" {
			return errors.New("-device and -tcp are mutually exclusive")
		}
		cfg.TCP = *f.tcpAddr
		cfg.Device = ""
	}
	if *f.timeout > 0 {
		cfg.Timeout = *f.timeout
	}
	return nil
}

func listOptions(cfg fileConfig) uart.ListOptions {
	opts := uart.DefaultListOptions()
	opts.Blocklist = append(opts.Blocklist, cfg.Blocklist...)
	opts.IgnorePaths = cfg.IgnorePaths
	return opts
}

func printPorts(cfg fileConfig) error {
	ports, err := uart.ListPorts(listOptions(cfg))
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		_, _ = fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		marker := " "
		if p.Known {
			marker = "*"
		}
		_, _ = fmt.Printf("%s %-16s %-9s %s\n", marker, p.Path, p.VIDPID, p.Product)
	}
	return nil
}

// openTransport returns a dialer for the configured link, picking the
// first known flight controller port when no device is given.
func openTransport(cfg fileConfig, logger zerolog.Logger) (msp.DialFunc, error) {
	if cfg.TCP != "" {
		return tcp.Dialer(cfg.TCP), nil
	}

	path := cfg.Device
	if path == "" {
		opts := listOptions(cfg)
		opts.OnlyKnown = true
		ports, err := uart.ListPorts(opts)
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, errors.New("no flight controller found, use -device or -tcp")
		}
		path = ports[0].Path
		logger.Info().Str("port", path).Str("usb", ports[0].VIDPID).Msg("auto-detected flight controller")
	}
	return uart.Dialer(path, uart.WithBaudRate(cfg.Baud)), nil
}

func loadDomains(cfg fileConfig, engine *msp.Engine) (*config.DomainTable, error) {
	domains := config.DefaultDomains()
	if cfg.DomainsFile == "" {
		return domains, nil
	}
	extra, err := config.LoadDomainTable(cfg.DomainsFile, engine.Table())
	if err != nil {
		return nil, err
	}
	domains.Merge(extra)
	return domains, nil
}

func printValues(values map[string]any) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Printf("%-20s %v\n", name, values[name])
	}
}

func writeSnapshot(path string, set *config.PropertySet) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := config.WriteSnapshot(file, set); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func watch(ctx context.Context, set *config.PropertySet, cfg fileConfig, logger zerolog.Logger) error {
	unsubscribe := set.OnChange(func(name string, value any) {
		_, _ = fmt.Printf("%s %-20s %v\n", time.Now().Format(time.TimeOnly), name, value)
	})
	defer unsubscribe()

	pollCfg := polling.DefaultConfig()
	pollCfg.Logger = logger
	pollCfg.Interval = cfg.Watch.Interval
	pollCfg.MaxInterval = cfg.Watch.MaxInterval
	poller, err := polling.NewPoller(pollCfg, polling.Callbacks{
		OnError: func(_ polling.Refresher, err error) {
			logger.Warn().Err(err).Str("domain", set.Domain()).Msg("refresh failed")
		},
	}, set)
	if err != nil {
		return err
	}
	if err := poller.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	_ = poller.Stop()

	m := poller.GetMetrics()
	logger.Info().Int64("cycles", m.Cycles).Int64("errors", m.Errors).Msg("watch stopped")
	return nil
}

func run(ctx context.Context, f *cliFlags, cfg fileConfig, logger zerolog.Logger) error {
	dial, err := openTransport(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := msp.New(nil, nil,
		msp.WithLogger(logger),
		msp.WithDefaultTimeout(cfg.Timeout),
		msp.WithDefaultRetries(cfg.Retries),
		msp.WithEventHandler(func(ev msp.Event) {
			if ev.Type == msp.EventDisconnected {
				logger.Warn().Err(ev.Err).Msg("flight controller disconnected")
			}
		}),
	)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	if err := engine.Reconnect(ctx, dial); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	domains, err := loadDomains(cfg, engine)
	if err != nil {
		return err
	}
	provider := config.NewProvider(engine, config.WithDomains(domains), config.WithLogger(logger))
	set, err := provider.NewSet(*f.domain)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(domains.Names(), ", "))
	}

	if err := set.Populate(ctx); err != nil {
		return err
	}
	for _, as := range f.sets {
		set.Set(as.key, as.value)
	}
	if *f.save {
		if err := set.Save(ctx); err != nil {
			return err
		}
	}
	printValues(set.Snapshot())

	if *f.snapshot != "" {
		if err := writeSnapshot(*f.snapshot, set); err != nil {
			return err
		}
	}

	if *f.watch {
		return watch(ctx, set, cfg, logger)
	}

	stats := engine.Stats()
	logger.Debug().
		Int64("requests", stats.RequestsSent).
		Int64("frames", stats.FramesDecoded).
		Int64("retries", stats.Retries).
		Msg("done")
	return nil
}

func main() {
	f := parseFlags()
	logger := newLogger(*f.debug)

	cfg, err := loadConfig(*f.configPath)
	if err == nil {
		err = mergeFlags(&cfg, f)
	}
	if err != nil {
		logger.Error().Err(err).Msg("configuration")
		os.Exit(2)
	}

	if *f.list {
		if err := printPorts(cfg); err != nil {
			logger.Error().Err(err).Msg("list ports")
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("mspquery failed")
		stop()
		os.Exit(1)
	}
}
