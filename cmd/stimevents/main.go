// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command stimevents extracts events from the trigger channels of EDF
// recordings and edits event files.
//
// Usage:
//
//	stimevents find recording.edf -o recording-eve.fif
//	stimevents find --consecutive always --output step recording.edf
//	stimevents merge --ids 1,2 --new-id 12 in-eve.txt -o out-eve.txt
//	stimevents concat --first-samps 0,0 --last-samps 999,1499 a-eve.fif b-eve.fif -o all-eve.fif
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
