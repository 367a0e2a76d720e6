// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim

import "errors"

// Errors returned by this package are wrapped around one of these, match
// them with errors.Is.
var (
	// ErrInvalidArgument is returned for malformed parameters such as a
	// negative mask or mismatched list lengths.
	ErrInvalidArgument = errors.New("stim: invalid argument")

	// ErrValidation is returned when the data violates an expectation,
	// e.g. events shorter than the shortest allowed event.
	ErrValidation = errors.New("stim: validation failed")

	// ErrNotFound is returned when an operation produced no events.
	ErrNotFound = errors.New("stim: not found")
)
