// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim_test

import (
	"testing"

	"github.com/OpenPSG/stim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindStimSteps(t *testing.T) {
	steps, err := stim.FindStimSteps([][]int{{0, 0, 5, 5}}, 0, stim.StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{{Sample: 2, Before: 0, After: 5}}, steps)

	// Absolute sample numbers
	steps, err = stim.FindStimSteps([][]int{{0, 0, 5, 5}}, 100, stim.StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{{Sample: 102, Before: 0, After: 5}}, steps)

	// Constant data has no steps
	steps, err = stim.FindStimSteps([][]int{{3, 3, 3, 3}}, 0, stim.StepOptions{})
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestFindStimStepsAllChannels(t *testing.T) {
	// Only one of the channels changes.
	steps, err := stim.FindStimSteps([][]int{{0, 1, 1}, {0, 0, 0}}, 0, stim.StepOptions{})
	require.NoError(t, err)
	assert.Empty(t, steps)

	// Both change, values come from the first channel.
	steps, err = stim.FindStimSteps([][]int{{0, 1, 1}, {3, 4, 4}}, 0, stim.StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{{Sample: 1, Before: 0, After: 1}}, steps)
}

func TestFindStimStepsPadding(t *testing.T) {
	steps, err := stim.FindStimSteps([][]int{{5, 5, 0, 0}}, 0, stim.StepOptions{
		PadStart: intp(0),
		PadStop:  intp(0),
	})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{
		{Sample: 0, Before: 0, After: 5},
		{Sample: 2, Before: 5, After: 0},
	}, steps)

	steps, err = stim.FindStimSteps([][]int{{0, 0, 3, 3}}, 10, stim.StepOptions{PadStop: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{
		{Sample: 12, Before: 0, After: 3},
		{Sample: 14, Before: 3, After: 0},
	}, steps)
}

func TestFindStimStepsMerge(t *testing.T) {
	data := [][]int{{0, 1, 2, 2, 2, 0}}

	steps, err := stim.FindStimSteps(data, 0, stim.StepOptions{Merge: 1})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{
		{Sample: 2, Before: 0, After: 2},
		{Sample: 5, Before: 2, After: 0},
	}, steps)

	steps, err = stim.FindStimSteps(data, 0, stim.StepOptions{Merge: -1})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{
		{Sample: 1, Before: 0, After: 2},
		{Sample: 5, Before: 2, After: 0},
	}, steps)

	// A step merged back to its own value disappears.
	steps, err = stim.FindStimSteps([][]int{{0, 3, 0, 0, 0}}, 0, stim.StepOptions{Merge: 1})
	require.NoError(t, err)
	assert.Empty(t, steps)

	// Merging is a single pass over the original values.
	steps, err = stim.FindStimSteps([][]int{{0, 1, 2, 3, 3, 3}}, 0, stim.StepOptions{Merge: 1})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{{Sample: 3, Before: 1, After: 3}}, steps)
}

func TestFindStimStepsNegative(t *testing.T) {
	log, buf := captureLogs()

	data := [][]int{{0, -5, -5, 0}}
	steps, err := stim.FindStimSteps(data, 0, stim.StepOptions{Logger: log})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{
		{Sample: 1, Before: 0, After: 5},
		{Sample: 3, Before: 5, After: 0},
	}, steps)

	assert.Contains(t, buf.String(), "negative values")
	assert.Equal(t, -5, data[0][1], "input must not be modified")
}

func TestFindStimStepsInvalid(t *testing.T) {
	_, err := stim.FindStimSteps(nil, 0, stim.StepOptions{})
	require.ErrorIs(t, err, stim.ErrInvalidArgument)

	_, err = stim.FindStimSteps([][]int{{0, 1, 2}, {0, 1}}, 0, stim.StepOptions{})
	require.ErrorIs(t, err, stim.ErrInvalidArgument)
}

func TestFindStimStepsLongRecording(t *testing.T) {
	const n = 200_000

	ch := make([]int, n)
	for i := range ch {
		ch[i] = (i / 1000) % 4
	}

	var want []stim.Transition
	for i := 1; i < n; i++ {
		if ch[i] != ch[i-1] {
			want = append(want, stim.Transition{Sample: i + 7, Before: ch[i-1], After: ch[i]})
		}
	}

	steps, err := stim.FindStimSteps([][]int{ch}, 7, stim.StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, want, steps)
}

func TestFindStimStepsRaw(t *testing.T) {
	raw := &memRaw{
		names: []string{"EEG 001", "STI 001", "STI 002"},
		data:  [][]int{{9, 8, 7, 6}, {0, 1, 1, 0}, {0, 2, 2, 0}},
		first: 50,
		sfreq: 100,
	}

	steps, err := stim.FindStimStepsRaw(raw, []string{"STI 001", "STI 002"}, stim.StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{
		{Sample: 51, Before: 0, After: 1},
		{Sample: 53, Before: 1, After: 0},
	}, steps)

	_, err = stim.FindStimStepsRaw(raw, nil, stim.StepOptions{})
	require.ErrorIs(t, err, stim.ErrValidation)
}
