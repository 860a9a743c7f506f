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


package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the optional TOML configuration. Flags override it.
//
//	device = "/dev/ttyACM0"
//	baud = 115200
//	timeout = "1s"
//	retries = 2
//	domains_file = "domains.toml"
//	ignore_paths = ["/dev/ttyACM1"]
//
//	[watch]
//	interval = "500ms"
//	max_interval = "5s"
type fileConfig struct {
	Device      string        `toml:"device"`
	TCP         string        `toml:"tcp"`
	DomainsFile string        `toml:"domains_file"`
	IgnorePaths []string      `toml:"ignore_paths"`
	Blocklist   []string      `toml:"blocklist"`
	Watch       watchConfig   `toml:"watch"`
	Baud        int           `toml:"baud"`
	Timeout     time.Duration `toml:"timeout"`
	Retries     int           `toml:"retries"`
}

type watchConfig struct {
	Interval    time.Duration `toml:"interval"`
	MaxInterval time.Duration `toml:"max_interval"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Baud:    115200,
		Timeout: time.Second,
		Watch: watchConfig{
			Interval:    500 * time.Millisecond,
			MaxInterval: 5 * time.Second,
		},
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	md, err := toml.Decode(string(data), out)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}
	return nil
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	if err := loadToml(path, &cfg); err != nil {
		return fileConfig{}, err
	}
	if err := validateConfig(cfg); err != nil {
		return fileConfig{}, fmt.Errorf("config %s invalid: %w", path, err)
	}
	return cfg, nil
}

func validateConfig(cfg fileConfig) error {
	if strings.TrimSpace(cfg.Device) != "" && strings.TrimSpace(cfg.TCP) != "" {
		return errors.New("device and tcp are mutually exclusive")
	}
	if cfg.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", cfg.Baud)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
	}
	if cfg.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", cfg.Retries)
	}
	if cfg.Watch.Interval <= 0 || cfg.Watch.MaxInterval < cfg.Watch.Interval {
		return fmt.Errorf("watch interval %v / max %v invalid", cfg.Watch.Interval, cfg.Watch.MaxInterval)
	}
	return nil
}

// assignments collects repeated -set key=value flags.
type assignments []assignment

type assignment struct {
	value any
	key   string
}

func (a *assignments) String() string {
	parts := make([]string, 0, len(*a))
	for _, as := range *a {
		parts = append(parts, fmt.Sprintf("%s=%v", as.key, as.value))
	}
	return strings.Join(parts, ",")
}

func (a *assignments) Set(s string) error {
	as, err := parseAssignment(s)
	if err != nil {
		return err
	}
	*a = append(*a, as)
	return nil
}

// parseAssignment splits key=value. Values that parse as integers (0x
// prefixes included) or true/false are stored typed, the rest as strings.
func parseAssignment(s string) (assignment, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return assignment{}, fmt.Errorf("expected key=value, got %q", s)
	}
	raw = strings.TrimSpace(raw)

	if n, err := strconv.ParseInt(raw, 0, 64); err == nil {
		return assignment{key: key, value: n}, nil
	}
	switch strings.ToLower(raw) {
	case "true":
		return assignment{key: key, value: true}, nil
	case "false":
		return assignment{key: key, value: false}, nil
	}
	return assignment{key: key, value: strings.Trim(raw, `"`)}, nil
}
