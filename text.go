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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadEventsText reads a plain text event list, one event per line.
//
// Lines hold three columns (sample, value, id) or, in the older format,
// four columns with the time in seconds as the second column, which is
// dropped. A leading line with id 0 marks the recording offset and is
// discarded.
func ReadEventsText(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)

	var (
		events  []Event
		columns int
		line    int
	)
	for scanner.Scan() {
		line++

		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		if columns == 0 {
			columns = len(fields)
			if columns != 3 && columns != 4 {
				return nil, fmt.Errorf("%w: unknown number of columns (%d) in event text file",
					ErrInvalidArgument, columns)
			}
		} else if len(fields) != columns {
			return nil, fmt.Errorf("%w: line %d has %d columns, expected %d",
				ErrInvalidArgument, line, len(fields), columns)
		}

		// Old files store floats in the time column, so every column is
		// parsed as a float and truncated.
		values := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("error parsing line %d: %w", line, err)
			}
			values[i] = int(v)
		}

		if columns == 4 {
			values = []int{values[0], values[2], values[3]}
		}
		events = append(events, Event{Sample: values[0], Value: values[1], ID: values[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading events: %w", err)
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no text lines found", ErrNotFound)
	}

	if events[0].ID == 0 {
		events = events[1:]
	}

	return events, nil
}

// WriteEventsText writes events as plain text, one "%6d %6d %3d" line per event.
func WriteEventsText(w io.Writer, events []Event) error {
	writer := bufio.NewWriter(w)

	for _, e := range events {
		if _, err := fmt.Fprintf(writer, "%6d %6d %3d\n", e.Sample, e.Value, e.ID); err != nil {
			return err
		}
	}

	return writer.Flush()
}
