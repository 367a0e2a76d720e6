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
	"cmp"
	"fmt"
	"math"
	"slices"
)

// PickOptions selects events by id.
type PickOptions struct {
	// Include keeps only these ids. If set, Exclude is ignored.
	Include []int
	// Exclude drops these ids.
	Exclude []int
	// Step also matches the value column, for events found with Step output.
	Step bool
}

// PickEvents returns the events selected by opts. It fails with
// ErrNotFound when nothing is left.
func PickEvents(events []Event, opts PickOptions) ([]Event, error) {
	var out []Event
	switch {
	case opts.Include != nil:
		for _, e := range events {
			if slices.Contains(opts.Include, e.ID) || (opts.Step && slices.Contains(opts.Include, e.Value)) {
				out = append(out, e)
			}
		}
	case opts.Exclude != nil:
		for _, e := range events {
			if !slices.Contains(opts.Exclude, e.ID) && !(opts.Step && slices.Contains(opts.Exclude, e.Value)) {
				out = append(out, e)
			}
		}
	default:
		out = slices.Clone(events)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no events found", ErrNotFound)
	}

	return out, nil
}

// MergeEvents replaces every id in ids, in both the value and the id
// column, by newID. Unless replace is set the original rows of the
// relabelled events are kept too and the result is sorted by sample,
// value and id.
//
// Merging ids 1 and 2 of [[134 0 1] [341 0 2] [502 0 3]] into 12 gives
// [[134 0 12] [341 0 12] [502 0 3]].
func MergeEvents(events []Event, ids []int, newID int, replace bool) []Event {
	out := slices.Clone(events)
	var touched []Event
	for i, e := range events {
		hit := false
		if slices.Contains(ids, e.Value) {
			out[i].Value = newID
			hit = true
		}
		if slices.Contains(ids, e.ID) {
			out[i].ID = newID
			hit = true
		}
		if hit {
			touched = append(touched, e)
		}
	}

	if replace {
		return out
	}

	out = append(out, touched...)
	slices.SortStableFunc(out, compareEvents)

	return out
}

// ShiftTimeEvents moves the events with an id in ids by tshift seconds.
// The shift is truncated to whole samples.
func ShiftTimeEvents(events []Event, ids []int, tshift, sfreq float64) []Event {
	delta := int(tshift * sfreq)

	out := slices.Clone(events)
	for i := range out {
		if slices.Contains(ids, out[i].ID) {
			out[i].Sample += delta
		}
	}

	return out
}

// FixedLengthOptions configures MakeFixedLengthEvents.
type FixedLengthOptions struct {
	// Start is the time of the first event in seconds.
	Start float64
	// Stop is the latest time of the last event in seconds, the end of
	// the recording if nil.
	Stop *float64
	// Duration separates consecutive events, in seconds.
	Duration float64
	// SkipFirstSamp leaves the first sample of the recording out of the
	// event samples. Use it when the events are combined with samples
	// that already include it.
	SkipFirstSamp bool
}

// DefaultFixedLengthOptions returns one event per second over the whole recording.
func DefaultFixedLengthOptions() FixedLengthOptions {
	return FixedLengthOptions{Duration: 1}
}

// MakeFixedLengthEvents makes events with the given id separated by a
// fixed duration. The last event is kept at least one duration away from
// the end of the recording.
func MakeFixedLengthEvents(seg Segment, id int, opts FixedLengthOptions) ([]Event, error) {
	sfreq := seg.SampleRate()
	if sfreq <= 0 {
		return nil, fmt.Errorf("%w: sampling frequency must be positive, got %g", ErrInvalidArgument, sfreq)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidArgument, opts.Duration)
	}
	if id < 0 {
		return nil, fmt.Errorf("%w: id must be a non-negative integer, got %d", ErrInvalidArgument, id)
	}

	first, last := seg.FirstSamp(), seg.LastSamp()

	start := int(opts.Start * sfreq)
	stop := last + 1
	if opts.Stop != nil {
		stop = int(*opts.Stop * sfreq)
	}
	if opts.SkipFirstSamp {
		stop = min(stop, last-first+1)
	} else {
		start += first
		stop = min(stop+first, last+1)
	}

	stop -= int(math.Ceil(sfreq * opts.Duration))

	step := sfreq * opts.Duration
	n := int(math.Ceil(float64(stop+1-start) / step))
	if n <= 0 {
		return nil, fmt.Errorf("%w: no events produced, check the values of start, stop, and duration",
			ErrValidation)
	}

	events := make([]Event, n)
	for k := range events {
		events[k] = Event{Sample: int(float64(start) + float64(k)*step), ID: id}
	}

	return events, nil
}

// TargetOptions configures DefineTargetEvents.
type TargetOptions struct {
	// NewID labels matched reference events, the reference id if nil.
	NewID *int
	// FillNA labels reference events without a target. If nil they are dropped.
	FillNA *int
}

// DefineTargetEvents defines new events from reference events followed,
// or preceded, by a target event within (tmin, tmax) seconds. It returns
// the new events and the lag to the target in milliseconds, NaN for
// filled events.
func DefineTargetEvents(events []Event, referenceID, targetID int, sfreq, tmin, tmax float64,
	opts TargetOptions,
) ([]Event, []float64, error) {
	if sfreq <= 0 {
		return nil, nil, fmt.Errorf("%w: sampling frequency must be positive, got %g", ErrInvalidArgument, sfreq)
	}

	newID := referenceID
	if opts.NewID != nil {
		newID = *opts.NewID
	}

	tsample := 1e3 / sfreq
	imin := int(tmin * sfreq)
	imax := int(tmax * sfreq)

	out := []Event{}
	lags := []float64{}
	for _, e := range events {
		if e.ID != referenceID {
			continue
		}

		lower, upper := e.Sample+imin, e.Sample+imax
		i := slices.IndexFunc(events, func(t Event) bool {
			return t.Sample > lower && t.Sample < upper && t.ID == targetID
		})

		switch {
		case i >= 0:
			lag := e.Sample - events[i].Sample
			if lag < 0 {
				lag = -lag
			}
			e.ID = newID
			out = append(out, e)
			lags = append(lags, float64(lag)*tsample)
		case opts.FillNA != nil:
			e.ID = *opts.FillNA
			out = append(out, e)
			lags = append(lags, math.NaN())
		}
	}

	return out, lags, nil
}

// ConcatenateEvents joins event lists of recordings that are concatenated
// back to back. Every list after the first is rebased onto the end of the
// previous recordings.
func ConcatenateEvents(lists [][]Event, firstSamps, lastSamps []int) ([]Event, error) {
	if len(lists) != len(firstSamps) || len(lists) != len(lastSamps) {
		return nil, fmt.Errorf("%w: events (%d), first samples (%d) and last samples (%d) must all have the same length",
			ErrInvalidArgument, len(lists), len(firstSamps), len(lastSamps))
	}
	if len(lists) == 0 {
		return []Event{}, nil
	}

	out := slices.Clone(lists[0])
	offset := firstSamps[0]
	for i := 1; i < len(lists); i++ {
		offset += lastSamps[i-1] - firstSamps[i-1] + 1
		for _, e := range lists[i] {
			e.Sample += offset - firstSamps[i]
			out = append(out, e)
		}
	}

	return out, nil
}

func compareEvents(a, b Event) int {
	if c := cmp.Compare(a.Sample, b.Sample); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
