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
	"strings"
)

// Transition is a single step of the stim channel.
type Transition struct {
	Sample int // Absolute index of the first sample holding the new value
	Before int // Channel value before the step
	After  int // Channel value after the step
}

// Event is a row of an event list.
type Event struct {
	Sample int // Absolute sample index
	Value  int // Value before the step, or the value after the event for offsets
	ID     int // Event code, 0 is never a valid event
}

// Output selects which edge of an event is reported.
type Output int

const (
	// Onset reports the first sample of each event.
	Onset Output = iota
	// Offset reports the last sample of each event.
	Offset
	// Step reports every onset and offset.
	Step
)

func (o Output) String() string {
	switch o {
	case Onset:
		return "onset"
	case Offset:
		return "offset"
	case Step:
		return "step"
	default:
		return fmt.Sprintf("Output(%d)", int(o))
	}
}

// UnmarshalText parses "onset", "offset" or "step".
func (o *Output) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "onset", "":
		*o = Onset
	case "offset":
		*o = Offset
	case "step":
		*o = Step
	default:
		return fmt.Errorf("%w: invalid output %q", ErrInvalidArgument, text)
	}
	return nil
}

func (o Output) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Consecutive controls how steps between two non-zero codes are treated.
type Consecutive int

const (
	// Increasing reports adjacent events only when the second code is
	// greater than the first.
	Increasing Consecutive = iota
	// Always reports every change of code as a new event.
	Always
	// Never reports only changes from or to zero.
	Never
)

func (c Consecutive) String() string {
	switch c {
	case Increasing:
		return "increasing"
	case Always:
		return "always"
	case Never:
		return "never"
	default:
		return fmt.Sprintf("Consecutive(%d)", int(c))
	}
}

// UnmarshalText parses "increasing", "always"/"true" or "never"/"false".
func (c *Consecutive) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "increasing", "":
		*c = Increasing
	case "always", "true":
		*c = Always
	case "never", "false":
		*c = Never
	default:
		return fmt.Errorf("%w: invalid consecutive mode %q", ErrInvalidArgument, text)
	}
	return nil
}

func (c Consecutive) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// classify reports whether a step opens and/or closes an event.
func (c Consecutive) classify(t Transition) (onset, offset bool) {
	switch c {
	case Always:
		return t.After > 0, t.Before > 0
	case Never:
		return t.Before == 0, t.After == 0
	default:
		onset = t.After > t.Before
		return onset, (onset || t.After == 0) && t.Before > 0
	}
}

// Segment describes the sample bounds of a recording.
type Segment interface {
	FirstSamp() int      // Absolute index of the first sample
	LastSamp() int       // Absolute index of the last sample
	SampleRate() float64 // Sampling frequency in Hz
}

// Raw provides the trigger channel data of a recording.
type Raw interface {
	Segment
	ChannelNames() []string
	// ReadChannels returns the integer samples of the picked channels.
	ReadChannels(picks []int) ([][]int, error)
}
