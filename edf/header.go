// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"fmt"
	"strconv"
	"strings"
)

// signalField is one per-signal header field. The header stores each
// field for all signals before moving on to the next field.
type signalField struct {
	name   string
	width  int
	parse  func(s *Signal, v string)
	format func(s Signal) string
}

var signalFields = []signalField{
	{"label", 16,
		func(s *Signal, v string) { s.Label = v },
		func(s Signal) string { return s.Label }},
	{"transducer type", 80,
		func(s *Signal, v string) { s.TransducerType = v },
		func(s Signal) string { return s.TransducerType }},
	{"physical dimension", 8,
		func(s *Signal, v string) { s.PhysicalDimension = v },
		func(s Signal) string { return s.PhysicalDimension }},
	{"physical minimum", 8,
		func(s *Signal, v string) { s.PhysicalMin = parseFloat(v) },
		func(s Signal) string { return formatPhysicalValue(s.PhysicalMin) }},
	{"physical maximum", 8,
		func(s *Signal, v string) { s.PhysicalMax = parseFloat(v) },
		func(s Signal) string { return formatPhysicalValue(s.PhysicalMax) }},
	{"digital minimum", 8,
		func(s *Signal, v string) { s.DigitalMin = parseInt(v) },
		func(s Signal) string { return strconv.Itoa(s.DigitalMin) }},
	{"digital maximum", 8,
		func(s *Signal, v string) { s.DigitalMax = parseInt(v) },
		func(s Signal) string { return strconv.Itoa(s.DigitalMax) }},
	{"prefiltering", 80,
		func(s *Signal, v string) { s.Prefiltering = v },
		func(s Signal) string { return s.Prefiltering }},
	{"samples per record", 8,
		func(s *Signal, v string) { s.SamplesPerRecord = parseInt(v) },
		func(s Signal) string { return strconv.Itoa(s.SamplesPerRecord) }},
	{"reserved", 32,
		func(s *Signal, v string) { s.Reserved = v },
		func(s Signal) string { return s.Reserved }},
}

// pad left-aligns v in a field of the given width, truncating if needed.
func pad(v string, width int) string {
	if len(v) > width {
		return v[:width]
	}
	return fmt.Sprintf("%-*s", width, v)
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(v string) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return i
}

func formatPhysicalValue(val float64) string {
	// Try with 2 decimal places
	s := fmt.Sprintf("%.2f", val)
	if len(s) > 8 {
		// Fall back to no decimal
		s = fmt.Sprintf("%.0f", val)
	}
	return s
}
