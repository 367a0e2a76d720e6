// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim_test

import (
	"bytes"
	"log/slog"
)

// memRaw is an in-memory recording.
type memRaw struct {
	names []string
	data  [][]int
	first int
	sfreq float64
}

func (r *memRaw) ChannelNames() []string { return r.names }
func (r *memRaw) FirstSamp() int         { return r.first }
func (r *memRaw) LastSamp() int          { return r.first + len(r.data[0]) - 1 }
func (r *memRaw) SampleRate() float64    { return r.sfreq }

func (r *memRaw) ReadChannels(picks []int) ([][]int, error) {
	out := make([][]int, len(picks))
	for i, p := range picks {
		out[i] = r.data[p]
	}
	return out, nil
}

// segment is a recording without data.
type segment struct {
	first, last int
	sfreq       float64
}

func (s segment) FirstSamp() int      { return s.first }
func (s segment) LastSamp() int       { return s.last }
func (s segment) SampleRate() float64 { return s.sfreq }

func captureLogs() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }
