// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// profile is one named connection entry in the config file.
type profile struct {
	Addr      string `yaml:"addr"`
	WebSocket bool   `yaml:"websocket"`
	Password  string `yaml:"password"`
	Exclusive bool   `yaml:"exclusive"`
}

// profilesFile is the on-disk config layout:
//
//	profiles:
//	  lab:
//	    addr: 10.0.0.5:5900
//	    password: hunter2
//	  kiosk:
//	    addr: ws://kiosk.local:5901/websockify
//	    websocket: true
type profilesFile struct {
	Profiles map[string]profile `yaml:"profiles"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rfbsnap.yaml"
	}
	return filepath.Join(home, ".config", "rfbsnap", "profiles.yaml")
}

func loadProfile(path, name string) (*profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	p, ok := file.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found in %s", name, path)
	}
	return &p, nil
}

// apply copies profile values into opts, leaving explicitly set flags alone.
func (p *profile) apply(opts *options) {
	if opts.addr == "" {
		opts.addr = p.Addr
	}
	if !opts.websocket {
		opts.websocket = p.WebSocket
	}
	if opts.password == "" && !opts.askPass {
		opts.password = p.Password
	}
	if !opts.exclusive {
		opts.exclusive = p.Exclusive
	}
}
