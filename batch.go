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
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// FindEventsBatch finds the events of several recordings concurrently,
// running at most limit extractions at a time (no limit if limit <= 0).
// Results are returned in the order of raws. The first failure cancels
// the extractions that have not started yet.
func FindEventsBatch(ctx context.Context, raws []Raw, opts FindOptions, limit int) ([][]Event, error) {
	results := make([][]Event, len(raws))

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, raw := range raws {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			events, err := FindEventsRaw(raw, opts)
			if err != nil {
				return fmt.Errorf("recording %d: %w", i, err)
			}
			results[i] = events
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// ConcatenateRecordings finds the events of every recording and joins
// them as if the recordings were concatenated in order.
func ConcatenateRecordings(ctx context.Context, raws []Raw, opts FindOptions, limit int) ([]Event, error) {
	lists, err := FindEventsBatch(ctx, raws, opts, limit)
	if err != nil {
		return nil, err
	}

	firstSamps := make([]int, len(raws))
	lastSamps := make([]int, len(raws))
	for i, raw := range raws {
		firstSamps[i] = raw.FirstSamp()
		lastSamps[i] = raw.LastSamp()
	}

	return ConcatenateEvents(lists, firstSamps, lastSamps)
}
