// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var eventFileSuffixes = []string{"-eve.fif", "-eve.fif.gz", "-eve.lst", "-eve.txt", ".eve"}

// ReadOptions configures ReadEvents.
type ReadOptions struct {
	// Include and Exclude select events by id, see PickOptions.
	Include []int
	Exclude []int
	// Mask is applied to the value and id columns after selection.
	Mask   int
	Logger *slog.Logger
}

// WriteOptions configures WriteEvents.
type WriteOptions struct {
	// Mappings from labels to event ids, only stored in binary files.
	Mappings map[string]int
	Logger   *slog.Logger
}

// ReadEvents reads events from a binary (.fif, .fif.gz) or text file
// (any other extension). Label mappings are only returned for binary files.
//
// Masking only runs when opts.Mask is non-zero. With a zero mask rows
// whose value equals their id are kept, unlike MNE's read_events which
// always masks and drops them.
func ReadEvents(path string, opts ReadOptions) ([]Event, map[string]int, error) {
	checkEventFileName(path, logger(opts.Logger))

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening events file: %w", err)
	}
	defer f.Close()

	var (
		events   []Event
		mappings map[string]int
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fif":
		events, mappings, err = ReadEventsFIF(f)
	case ".gz":
		var zr *gzip.Reader
		if zr, err = gzip.NewReader(f); err != nil {
			return nil, nil, fmt.Errorf("error opening compressed events file: %w", err)
		}
		defer zr.Close()
		events, mappings, err = ReadEventsFIF(zr)
	default:
		events, err = ReadEventsText(f)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	events, err = PickEvents(events, PickOptions{Include: opts.Include, Exclude: opts.Exclude})
	if err != nil {
		return nil, nil, err
	}

	if opts.Mask != 0 {
		if events, err = maskEvents(events, opts.Mask); err != nil {
			return nil, nil, err
		}
	}

	return events, mappings, nil
}

// WriteEvents writes events to a binary (.fif, .fif.gz) or text file. The
// file is replaced atomically, a failed write leaves any existing file intact.
func WriteEvents(path string, events []Event, opts WriteOptions) error {
	checkEventFileName(path, logger(opts.Logger))

	ext := strings.ToLower(filepath.Ext(path))

	return writeAtomic(path, func(w io.Writer) error {
		switch ext {
		case ".fif":
			return WriteEventsFIF(w, events, opts.Mappings)
		case ".gz":
			zw := gzip.NewWriter(w)
			if err := WriteEventsFIF(zw, events, opts.Mappings); err != nil {
				return err
			}
			return zw.Close()
		default:
			return WriteEventsText(w, events)
		}
	})
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("error creating events file: %w", err)
	}
	defer os.Remove(f.Name())

	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("error creating events file: %w", err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing events: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing events: %w", err)
	}

	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("error writing events: %w", err)
	}

	return nil
}

func checkEventFileName(path string, log *slog.Logger) {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range eventFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return
		}
	}
	log.Warn("events filename does not conform to naming conventions", "path", path, "suffixes", eventFileSuffixes)
}
