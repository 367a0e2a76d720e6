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
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Recordings shorter than this are scanned on the calling goroutine.
const parallelScanThreshold = 1 << 16

// StepOptions configures FindStimSteps.
type StepOptions struct {
	// PadStart is the value assumed before the first sample. If the channel
	// starts at a different value a step is inserted at sample 0.
	PadStart *int
	// PadStop is the value assumed after the last sample.
	PadStop *int
	// Merge joins steps at most |Merge| samples apart. Positive values keep
	// the later step, negative values the earlier one.
	Merge int
	// Logger receives diagnostics, slog.Default() if nil.
	Logger *slog.Logger
}

// FindStimSteps finds all steps in the stim channel data, a matrix of
// channels by samples. A step is recorded where every channel changes
// value at the same sample; values are taken from the first channel.
func FindStimSteps(data [][]int, firstSamp int, opts StepOptions) ([]Transition, error) {
	if err := checkMatrix(data); err != nil {
		return nil, err
	}

	data = rectify(data, logger(opts.Logger), "trigger channel contains negative values, using absolute value")

	return findSteps(data, firstSamp, opts.PadStart, opts.PadStop, opts.Merge), nil
}

// FindStimStepsRaw reads the named stim channels from raw and finds their steps.
func FindStimStepsRaw(raw Raw, stimChannels []string, opts StepOptions) ([]Transition, error) {
	data, err := readStimChannels(raw, stimChannels)
	if err != nil {
		return nil, err
	}

	return FindStimSteps(data, raw.FirstSamp(), opts)
}

func findSteps(data [][]int, firstSamp int, padStart, padStop *int, merge int) []Transition {
	idx := changedColumns(data)
	if len(idx) == 0 {
		return []Transition{}
	}

	ch := data[0]
	steps := make([]Transition, 0, len(idx)+2)
	for _, i := range idx {
		steps = append(steps, Transition{Sample: i + 1 + firstSamp, Before: ch[i], After: ch[i+1]})
	}

	if padStart != nil {
		if v := steps[0].Before; v != *padStart {
			steps = append([]Transition{{Sample: 0, Before: *padStart, After: v}}, steps...)
		}
	}

	if padStop != nil {
		if v := steps[len(steps)-1].After; v != *padStop {
			steps = append(steps, Transition{Sample: len(ch) + firstSamp, Before: v, After: *padStop})
		}
	}

	if merge != 0 {
		steps = mergeSteps(steps, merge)
	}

	return steps
}

// mergeSteps joins neighbouring steps in a single pass over the original
// values, so a chain of close steps does not cascade.
func mergeSteps(steps []Transition, merge int) []Transition {
	width := merge
	if width < 0 {
		width = -width
	}

	n := len(steps)
	near := make([]bool, n-1)
	found := false
	for i := range near {
		near[i] = steps[i+1].Sample-steps[i].Sample <= width
		found = found || near[i]
	}
	if !found {
		return steps
	}

	merged := make([]Transition, n)
	copy(merged, steps)
	keep := make([]bool, n)

	if merge > 0 {
		// Drop the earlier step.
		for i, ok := range near {
			if ok {
				merged[i+1].Before = steps[i].Before
			}
			keep[i] = !ok
		}
		keep[n-1] = true
	} else {
		// Drop the later step.
		keep[0] = true
		for i, ok := range near {
			if ok {
				merged[i].After = steps[i+1].After
			}
			keep[i+1] = !ok
		}
	}

	out := make([]Transition, 0, n)
	for i, t := range merged {
		if keep[i] && t.Before != t.After {
			out = append(out, t)
		}
	}

	return out
}

// changedColumns returns every index i where all channels differ between
// sample i and i+1. Long recordings are split across goroutines, each
// range is independent.
func changedColumns(data [][]int) []int {
	n := len(data[0]) - 1
	if n <= 0 {
		return nil
	}

	if n < parallelScanThreshold {
		return scanRange(data, 0, n)
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	parts := make([][]int, workers)

	var g errgroup.Group
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			parts[w] = scanRange(data, lo, hi)
			return nil
		})
	}
	_ = g.Wait()

	var idx []int
	for _, p := range parts {
		idx = append(idx, p...)
	}

	return idx
}

func scanRange(data [][]int, lo, hi int) []int {
	var idx []int
	for i := lo; i < hi; i++ {
		changed := true
		for _, ch := range data {
			if ch[i] == ch[i+1] {
				changed = false
				break
			}
		}
		if changed {
			idx = append(idx, i)
		}
	}
	return idx
}

func checkMatrix(data [][]int) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: no stim channel data", ErrInvalidArgument)
	}
	for i, ch := range data[1:] {
		if len(ch) != len(data[0]) {
			return fmt.Errorf("%w: channel %d has %d samples, expected %d",
				ErrInvalidArgument, i+1, len(ch), len(data[0]))
		}
	}
	return nil
}

// rectify replaces negative values by their magnitude. The input is only
// copied when a negative value is present.
func rectify(data [][]int, log *slog.Logger, msg string) [][]int {
	negative := false
	for _, ch := range data {
		for _, v := range ch {
			if v < 0 {
				negative = true
				break
			}
		}
		if negative {
			break
		}
	}
	if !negative {
		return data
	}

	log.Warn(msg)

	out := make([][]int, len(data))
	for i, ch := range data {
		out[i] = make([]int, len(ch))
		for j, v := range ch {
			if v < 0 {
				v = -v
			}
			out[i][j] = v
		}
	}
	return out
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
