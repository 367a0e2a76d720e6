// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/stim"
	"github.com/OpenPSG/stim/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Setenv(envStimChannel, "")

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

// writeRecording writes an EDF file with a single stim channel of 4
// samples per one second record.
func writeRecording(t *testing.T, name string, stimData ...int) string {
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{Label: stim.DefaultStimChannel, PhysicalMax: 255, DigitalMax: 255, SamplesPerRecord: 4},
		},
	})
	require.NoError(t, err)

	for i := 0; i < len(stimData); i += 4 {
		require.NoError(t, ew.WriteDigitalRecord([][]int{stimData[i : i+4]}))
	}
	require.NoError(t, ew.Close())

	return path
}

func writeEventsFile(t *testing.T, name string, events []stim.Event) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, stim.WriteEvents(path, events, stim.WriteOptions{}))
	return path
}

func TestFindCommand(t *testing.T) {
	rec := writeRecording(t, "a.edf", 0, 32, 32, 33, 32, 0, 0, 0)

	out, err := run(t, "find", rec)
	require.NoError(t, err)
	assert.Equal(t, "     1      0  32\n     3     32  33\n", out)

	out, err = run(t, "find", "--output", "step", "--consecutive", "always", "--shortest-event", "1", rec)
	require.NoError(t, err)
	assert.Equal(t, "     1      0  32\n     3     32  33\n     4     33  32\n     5     32   0\n", out)

	// Events closer than the shortest event.
	_, err = run(t, "find", "--consecutive", "always", rec)
	require.ErrorIs(t, err, stim.ErrValidation)

	_, err = run(t, "find", "--output", "both", rec)
	require.Error(t, err)

	_, err = run(t, "find", "--stim-channel", "STI 101", rec)
	require.ErrorIs(t, err, stim.ErrValidation)
}

func TestFindCommandToFile(t *testing.T) {
	rec := writeRecording(t, "a.edf", 0, 32, 32, 33, 32, 0, 0, 0)
	path := filepath.Join(t.TempDir(), "a-eve.fif")

	out, err := run(t, "find", "-o", path, rec)
	require.NoError(t, err)
	assert.Empty(t, out)

	events, _, err := stim.ReadEvents(path, stim.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []stim.Event{{Sample: 1, Value: 0, ID: 32}, {Sample: 3, Value: 32, ID: 33}}, events)
}

func TestFindCommandConcat(t *testing.T) {
	a := writeRecording(t, "a.edf", 0, 32, 32, 33, 32, 0, 0, 0)
	b := writeRecording(t, "b.edf", 0, 0, 5, 5, 0, 0, 0, 0)

	_, err := run(t, "find", a, b)
	require.Error(t, err)

	out, err := run(t, "find", "--concat", a, b)
	require.NoError(t, err)
	assert.Equal(t, "     1      0  32\n     3     32  33\n    10      0   5\n", out)
}

func TestFindCommandConfig(t *testing.T) {
	rec := writeRecording(t, "a.edf", 0, 32, 32, 33, 32, 0, 0, 0)
	cfg := writeConfig(t, "consecutive: never\n")

	out, err := run(t, "--config", cfg, "find", rec)
	require.NoError(t, err)
	assert.Equal(t, "     1      0  32\n", out)

	_, err = run(t, "--config", writeConfig(t, "output: both\n"), "find", rec)
	require.Error(t, err)
}

func TestStepsCommand(t *testing.T) {
	rec := writeRecording(t, "a.edf", 5, 5, 0, 0, 0, 3, 3, 3)

	out, err := run(t, "steps", "--pad-start", "0", "--pad-stop", "0", rec)
	require.NoError(t, err)
	assert.Equal(t, "     0      0   5\n     2      5   0\n     5      0   3\n     8      3   0\n", out)
}

func TestPickCommand(t *testing.T) {
	in := writeEventsFile(t, "in-eve.txt", []stim.Event{{Sample: 10, Value: 0, ID: 1}, {Sample: 20, Value: 0, ID: 2}, {Sample: 30, Value: 0, ID: 3}})

	out, err := run(t, "pick", "--include", "1,3", in)
	require.NoError(t, err)
	assert.Equal(t, "    10      0   1\n    30      0   3\n", out)

	out, err = run(t, "pick", "--exclude", "1", in)
	require.NoError(t, err)
	assert.Equal(t, "    20      0   2\n    30      0   3\n", out)

	_, err = run(t, "pick", "--include", "9", in)
	require.ErrorIs(t, err, stim.ErrNotFound)
}

func TestMergeCommand(t *testing.T) {
	in := writeEventsFile(t, "in-eve.txt", []stim.Event{{Sample: 134, Value: 0, ID: 1}, {Sample: 341, Value: 0, ID: 2}, {Sample: 502, Value: 0, ID: 3}})

	out, err := run(t, "merge", "--ids", "1,2", "--new-id", "12", in)
	require.NoError(t, err)
	assert.Equal(t, "   134      0  12\n   341      0  12\n   502      0   3\n", out)

	out, err = run(t, "merge", "--ids", "1", "--new-id", "12", "--keep-original", in)
	require.NoError(t, err)
	assert.Equal(t, "   134      0   1\n   134      0  12\n   341      0   2\n   502      0   3\n", out)
}

func TestShiftCommand(t *testing.T) {
	in := writeEventsFile(t, "in-eve.txt", []stim.Event{{Sample: 100, Value: 0, ID: 1}, {Sample: 200, Value: 0, ID: 2}})

	out, err := run(t, "shift", "--ids", "2", "--tshift", "-0.5", "--sfreq", "100", in)
	require.NoError(t, err)
	assert.Equal(t, "   100      0   1\n   150      0   2\n", out)
}

func TestFixedCommand(t *testing.T) {
	rec := writeRecording(t, "a.edf", make([]int, 16)...)

	out, err := run(t, "fixed", "--id", "7", "--duration", "1", rec)
	require.NoError(t, err)
	assert.Equal(t, "     0      0   7\n     4      0   7\n     8      0   7\n    12      0   7\n", out)
}

func TestTargetCommand(t *testing.T) {
	in := writeEventsFile(t, "in-eve.txt", []stim.Event{{Sample: 100, Value: 0, ID: 1}, {Sample: 150, Value: 0, ID: 2}, {Sample: 300, Value: 0, ID: 1}})
	lags := filepath.Join(t.TempDir(), "lags.txt")

	out, err := run(t, "target", "--reference", "1", "--target", "2", "--sfreq", "1000",
		"--tmax", "0.1", "--new-id", "42", "--fill-na", "99", "--lags", lags, in)
	require.NoError(t, err)
	assert.Equal(t, "   100      0  42\n   300      0  99\n", out)

	b, err := os.ReadFile(lags)
	require.NoError(t, err)
	assert.Equal(t, "50.000\nnan\n", string(b))
}

func TestConcatCommand(t *testing.T) {
	a := writeEventsFile(t, "a-eve.fif", []stim.Event{{Sample: 10, Value: 0, ID: 1}})
	b := writeEventsFile(t, "b-eve.fif", []stim.Event{{Sample: 105, Value: 0, ID: 2}})

	out, err := run(t, "concat", "--first-samps", "5,100", "--last-samps", "54,149", a, b)
	require.NoError(t, err)
	assert.Equal(t, "    10      0   1\n    60      0   2\n", out)

	_, err = run(t, "concat", "--first-samps", "5", "--last-samps", "54,149", a, b)
	require.ErrorIs(t, err, stim.ErrInvalidArgument)
}

func TestWriteLags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lags.txt")

	require.NoError(t, writeLags(path, []float64{12.5, math.NaN(), 0}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "12.500\nnan\n0.000\n", string(b))

	require.Error(t, writeLags(filepath.Join(t.TempDir(), "missing", "lags.txt"), []float64{1}))
}
