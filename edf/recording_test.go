// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"testing"
	"time"

	"github.com/OpenPSG/stim"
	"github.com/OpenPSG/stim/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ stim.Raw = (*edf.Recording)(nil)

func triggerHeader() edf.Header {
	return edf.Header{
		Version:            edf.Version0,
		PatientID:          "X",
		RecordingID:        "triggers",
		StartTime:          time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{Label: "EEG Fpz-Cz", PhysicalMin: -500, PhysicalMax: 500, DigitalMin: -2048, DigitalMax: 2047, SamplesPerRecord: 4},
			{Label: stim.DefaultStimChannel, PhysicalMin: 0, PhysicalMax: 255, DigitalMin: 0, DigitalMax: 255, SamplesPerRecord: 4},
			{Label: "Resp", PhysicalMin: -1, PhysicalMax: 1, DigitalMin: -100, DigitalMax: 100, SamplesPerRecord: 1},
		},
	}
}

func writeTriggers(t *testing.T, finalize bool) *edf.Recording {
	f := createFile(t)

	ew, err := edf.Create(f, triggerHeader())
	require.NoError(t, err)

	require.NoError(t, ew.WriteDigitalRecord([][]int{{1, 2, 3, 4}, {0, 32, 32, 33}, {0}}))
	require.NoError(t, ew.WriteDigitalRecord([][]int{{5, 6, 7, 8}, {32, 0, 0, 0}, {1}}))

	if !finalize {
		_, err := edf.OpenRecording(f)
		require.ErrorIs(t, err, edf.ErrUnknownLength)
		return nil
	}
	require.NoError(t, ew.Close())

	rec, err := edf.OpenRecording(f)
	require.NoError(t, err)
	return rec
}

func TestRecording(t *testing.T) {
	rec := writeTriggers(t, true)

	assert.Equal(t, []string{"EEG Fpz-Cz", stim.DefaultStimChannel, "Resp"}, rec.ChannelNames())
	assert.Equal(t, 0, rec.FirstSamp())
	assert.Equal(t, 7, rec.LastSamp())
	assert.Equal(t, 4.0, rec.SampleRate())

	data, err := rec.ReadChannels([]int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 32, 32, 33, 32, 0, 0, 0}, {1, 2, 3, 4, 5, 6, 7, 8}}, data)

	_, err = rec.ReadChannels([]int{2})
	require.ErrorIs(t, err, edf.ErrSampleRateMismatch)

	_, err = rec.ReadChannels([]int{3})
	require.Error(t, err)
}

func TestRecordingFindEvents(t *testing.T) {
	rec := writeTriggers(t, true)

	events, err := stim.FindEventsRaw(rec, stim.DefaultFindOptions())
	require.NoError(t, err)
	assert.Equal(t, []stim.Event{{Sample: 1, Value: 0, ID: 32}, {Sample: 3, Value: 32, ID: 33}}, events)

	steps, err := stim.FindStimStepsRaw(rec, []string{stim.DefaultStimChannel}, stim.StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, []stim.Transition{
		{Sample: 1, Before: 0, After: 32},
		{Sample: 3, Before: 32, After: 33},
		{Sample: 4, Before: 33, After: 32},
		{Sample: 5, Before: 32, After: 0},
	}, steps)
}

func TestRecordingUnknownLength(t *testing.T) {
	writeTriggers(t, false)
}

func TestSignalSampleRate(t *testing.T) {
	s := edf.Signal{SamplesPerRecord: 256}
	assert.Equal(t, 128.0, s.SampleRate(2*time.Second))
	assert.Equal(t, 0.0, s.SampleRate(0))
}
