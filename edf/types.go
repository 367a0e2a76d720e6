// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes EDF/EDF+ recordings and exposes their
// trigger channels as integer sample data for event extraction.
package edf

import (
	"errors"
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

// Annotations is the label of EDF+ annotation signals, which hold text
// rather than samples.
const Annotations = "EDF Annotations"

var (
	// ErrSampleRateMismatch is returned when channels read together do not
	// share the recording sample rate.
	ErrSampleRateMismatch = errors.New("edf: sample rate mismatch")
	// ErrUnknownLength is returned for recordings whose number of data
	// records was never finalized.
	ErrUnknownLength = errors.New("edf: unknown number of data records")
)

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	DataRecordDuration time.Duration // Duration of a single data record
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG Fpz-Cz, STI 014)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// SampleRate returns the sampling frequency of the signal in Hz.
func (s Signal) SampleRate(recordDuration time.Duration) float64 {
	if recordDuration <= 0 {
		return 0
	}
	return float64(s.SamplesPerRecord) / recordDuration.Seconds()
}
