// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim

import "fmt"

// MaskTransitions clears the bits set in mask from both values of every
// transition and drops the transitions that no longer change value.
//
// For example a trigger value of 7 (0000111) under a mask of 37 (0100101)
// becomes 2 (0000010).
func MaskTransitions(ts []Transition, mask int) ([]Transition, error) {
	if mask < 0 {
		return nil, fmt.Errorf("%w: mask must be a non-negative integer, got %d", ErrInvalidArgument, mask)
	}

	out := make([]Transition, 0, len(ts))
	for _, t := range ts {
		t.Before &^= mask
		t.After &^= mask
		if t.Before != t.After {
			out = append(out, t)
		}
	}

	return out, nil
}

// maskEvents applies the same rule to the value and id columns of an event list.
func maskEvents(events []Event, mask int) ([]Event, error) {
	if mask < 0 {
		return nil, fmt.Errorf("%w: mask must be a non-negative integer, got %d", ErrInvalidArgument, mask)
	}

	out := make([]Event, 0, len(events))
	for _, e := range events {
		e.Value &^= mask
		e.ID &^= mask
		if e.Value != e.ID {
			out = append(out, e)
		}
	}

	return out, nil
}
