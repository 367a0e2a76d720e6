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
	"math"
	"slices"
)

// DefaultStimChannel is used when no stim channel is named.
const DefaultStimChannel = "STI 014"

// ExtractOptions configures ExtractEvents.
type ExtractOptions struct {
	Output      Output
	Consecutive Consecutive
	// ShortestEvent is the minimum number of samples between two reported
	// events. Closer events are an error, 0 disables the check.
	ShortestEvent int
	Logger        *slog.Logger
}

// FindOptions configures FindEvents.
type FindOptions struct {
	Output      Output
	Consecutive Consecutive
	// MinDuration is the minimum duration in seconds of a change in the
	// stim channel for it to count as an event.
	MinDuration   float64
	ShortestEvent int
	// Mask holds the bits of the trigger value to ignore.
	Mask int
	// UintCast reinterprets the channel as uint16, which undoes the sign
	// flip some acquisition systems produce when the top trigger line is set.
	UintCast bool
	// StimChannels names the stim channels of a Raw recording. If empty
	// DefaultStimChannel is used.
	StimChannels []string
	Logger       *slog.Logger
}

// DefaultFindOptions returns onset detection with increasing consecutive
// events and a shortest event of 2 samples.
func DefaultFindOptions() FindOptions {
	return FindOptions{
		Output:        Onset,
		Consecutive:   Increasing,
		ShortestEvent: 2,
	}
}

// ExtractEvents turns stim channel steps into events.
func ExtractEvents(ts []Transition, opts ExtractOptions) ([]Event, error) {
	if err := checkExtractOptions(opts); err != nil {
		return nil, err
	}
	log := logger(opts.Logger)

	var onsets, offsets []int
	for i, t := range ts {
		on, off := opts.Consecutive.classify(t)
		if on {
			onsets = append(onsets, i)
		}
		if off {
			offsets = append(offsets, i)
		}
	}

	if len(onsets) == 0 || len(offsets) == 0 {
		return []Event{}, nil
	}

	if onsets[0] > offsets[0] {
		log.Info("removing orphaned offset at the beginning of the recording", "sample", ts[offsets[0]].Sample)
		offsets = offsets[1:]
		if len(offsets) == 0 {
			return []Event{}, nil
		}
	}

	if onsets[len(onsets)-1] > offsets[len(offsets)-1] {
		log.Info("removing orphaned onset at the end of the recording", "sample", ts[onsets[len(onsets)-1]].Sample)
		onsets = onsets[:len(onsets)-1]
		if len(onsets) == 0 {
			return []Event{}, nil
		}
	}

	var events []Event
	switch opts.Output {
	case Onset:
		events = rows(ts, onsets)
	case Step:
		idx := append(slices.Clone(onsets), offsets...)
		slices.Sort(idx)
		events = rows(ts, slices.Compact(idx))
	case Offset:
		if len(onsets) != len(offsets) {
			return nil, fmt.Errorf("%w: %d onsets cannot be paired with %d offsets",
				ErrValidation, len(onsets), len(offsets))
		}
		events = make([]Event, len(offsets))
		for k, i := range offsets {
			events[k] = Event{
				Sample: ts[i].Sample - 1,
				Value:  ts[i].After,
				ID:     ts[onsets[k]].After,
			}
		}
	}

	log.Info("events found", "count", len(events), "ids", UniqueIDs(events))

	if n := countShort(events, opts.ShortestEvent); n > 0 {
		return nil, fmt.Errorf("%w: %d events shorter than the shortest event of %d samples; "+
			"consider a minimum duration one sample shorter than the shortest event",
			ErrValidation, n, opts.ShortestEvent)
	}

	return events, nil
}

// FindEvents finds events in stim channel data, a matrix of channels by
// samples starting at absolute sample firstSamp and sampled at sfreq Hz.
//
// For a stim channel holding [0, 32, 32, 33, 32, 0] the default options
// report [1 0 32] and [3 32 33].
func FindEvents(data [][]int, firstSamp int, sfreq float64, opts FindOptions) ([]Event, error) {
	if err := checkMatrix(data); err != nil {
		return nil, err
	}
	log := logger(opts.Logger)

	merge := 0
	if opts.MinDuration > 0 {
		if sfreq <= 0 {
			return nil, fmt.Errorf("%w: sampling frequency must be positive, got %g", ErrInvalidArgument, sfreq)
		}
		minSamples := opts.MinDuration * sfreq
		merge = int(math.Floor(minSamples))
		if float64(merge) == minSamples {
			merge--
		}
	}

	if opts.UintCast {
		data = castUint16(data)
	}
	data = rectify(data, log, "trigger channel contains negative values, using absolute value. "+
		"If the top trigger line was active during acquisition, consider UintCast")

	padStop := 0
	steps := findSteps(data, firstSamp, nil, &padStop, merge)

	steps, err := MaskTransitions(steps, opts.Mask)
	if err != nil {
		return nil, err
	}

	return ExtractEvents(steps, ExtractOptions{
		Output:        opts.Output,
		Consecutive:   opts.Consecutive,
		ShortestEvent: opts.ShortestEvent,
		Logger:        log,
	})
}

// FindEventsRaw reads the stim channels of raw and finds their events.
func FindEventsRaw(raw Raw, opts FindOptions) ([]Event, error) {
	data, err := readStimChannels(raw, opts.StimChannels)
	if err != nil {
		return nil, err
	}

	return FindEvents(data, raw.FirstSamp(), raw.SampleRate(), opts)
}

// PickChannels returns the indices of the names found in include, in
// channel order.
func PickChannels(names, include []string) []int {
	var picks []int
	for i, name := range names {
		if slices.Contains(include, name) {
			picks = append(picks, i)
		}
	}
	return picks
}

// UniqueIDs returns the sorted distinct event ids.
func UniqueIDs(events []Event) []int {
	ids := make([]int, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func readStimChannels(raw Raw, stimChannels []string) ([][]int, error) {
	if len(stimChannels) == 0 {
		stimChannels = []string{DefaultStimChannel}
	}

	picks := PickChannels(raw.ChannelNames(), stimChannels)
	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: no stim channel found to extract event triggers (looked for %q)",
			ErrValidation, stimChannels)
	}

	data, err := raw.ReadChannels(picks)
	if err != nil {
		return nil, fmt.Errorf("error reading stim channels: %w", err)
	}

	return data, nil
}

func checkExtractOptions(opts ExtractOptions) error {
	switch opts.Output {
	case Onset, Offset, Step:
	default:
		return fmt.Errorf("%w: invalid output %v", ErrInvalidArgument, opts.Output)
	}
	switch opts.Consecutive {
	case Increasing, Always, Never:
	default:
		return fmt.Errorf("%w: invalid consecutive mode %v", ErrInvalidArgument, opts.Consecutive)
	}
	if opts.ShortestEvent < 0 {
		return fmt.Errorf("%w: shortest event must not be negative, got %d", ErrInvalidArgument, opts.ShortestEvent)
	}
	return nil
}

func rows(ts []Transition, idx []int) []Event {
	events := make([]Event, len(idx))
	for k, i := range idx {
		events[k] = Event{Sample: ts[i].Sample, Value: ts[i].Before, ID: ts[i].After}
	}
	return events
}

// countShort counts adjacent events, in sample order, closer than shortest.
func countShort(events []Event, shortest int) int {
	samples := make([]int, len(events))
	for i, e := range events {
		samples[i] = e.Sample
	}
	slices.Sort(samples)

	n := 0
	for i := 1; i < len(samples); i++ {
		if samples[i]-samples[i-1] < shortest {
			n++
		}
	}
	return n
}

func castUint16(data [][]int) [][]int {
	out := make([][]int, len(data))
	for i, ch := range data {
		out[i] = make([]int, len(ch))
		for j, v := range ch {
			out[i][j] = int(uint16(v))
		}
	}
	return out
}
