// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/OpenPSG/stim"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables naming the stim channels when the config names none.
const (
	envStimChannel       = "MNE_STIM_CHANNEL"
	envStimChannelPrefix = "MNE_STIM_CHANNEL_"
)

var configValidate = validator.New()

// Config holds the event extraction settings of the CLI.
type Config struct {
	StimChannels  []string `yaml:"stim_channels" validate:"dive,required"`
	Output        string   `yaml:"output" validate:"oneof=onset offset step"`
	Consecutive   string   `yaml:"consecutive" validate:"oneof=increasing always never true false"`
	MinDuration   float64  `yaml:"min_duration" validate:"gte=0"`
	ShortestEvent int      `yaml:"shortest_event" validate:"gte=0"`
	Mask          int      `yaml:"mask" validate:"gte=0"`
	UintCast      bool     `yaml:"uint_cast"`
	// Concurrency bounds how many recordings are processed at once, 0 for no bound.
	Concurrency int `yaml:"concurrency" validate:"gte=0"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Output:        "onset",
		Consecutive:   "increasing",
		ShortestEvent: 2,
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults. Stim channels missing from the file are taken
// from the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config: %w", err)
		}
	}

	if len(cfg.StimChannels) == 0 {
		cfg.StimChannels = stimChannelsFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config fields.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FindOptions converts the config to event extraction options.
func (c Config) FindOptions(logger *slog.Logger) (stim.FindOptions, error) {
	opts := stim.FindOptions{
		MinDuration:   c.MinDuration,
		ShortestEvent: c.ShortestEvent,
		Mask:          c.Mask,
		UintCast:      c.UintCast,
		StimChannels:  c.StimChannels,
		Logger:        logger,
	}
	if err := opts.Output.UnmarshalText([]byte(c.Output)); err != nil {
		return stim.FindOptions{}, err
	}
	if err := opts.Consecutive.UnmarshalText([]byte(c.Consecutive)); err != nil {
		return stim.FindOptions{}, err
	}
	return opts, nil
}

// stimChannelsFromEnv reads MNE_STIM_CHANNEL, then MNE_STIM_CHANNEL_1,
// MNE_STIM_CHANNEL_2, ... until one is unset.
func stimChannelsFromEnv() []string {
	var channels []string
	if ch, ok := os.LookupEnv(envStimChannel); ok && ch != "" {
		channels = append(channels, ch)
	}
	for i := 1; ; i++ {
		ch, ok := os.LookupEnv(envStimChannelPrefix + strconv.Itoa(i))
		if !ok || ch == "" {
			break
		}
		channels = append(channels, ch)
	}
	return channels
}
