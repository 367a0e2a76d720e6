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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// As recommended by the EDF standard.
const maxRecordBytes = 61440

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	if hdr.SignalCount == 0 {
		hdr.SignalCount = len(hdr.Signals)
	}
	if hdr.SignalCount != len(hdr.Signals) {
		return nil, fmt.Errorf("signal count %d does not match %d signals", hdr.SignalCount, len(hdr.Signals))
	}

	ew := &Writer{w: w, hdr: &hdr}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record of physical values.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	digital := make([][]int16, len(signals))
	for i, samples := range signals {
		if i >= len(ew.hdr.Signals) {
			break
		}
		s := ew.hdr.Signals[i]
		digital[i] = make([]int16, len(samples))
		for j, v := range samples {
			digital[i][j] = convertPhysicalToDigital(v, s.PhysicalMin, s.PhysicalMax, s.DigitalMin, s.DigitalMax)
		}
	}

	return ew.writeRecord(digital)
}

// WriteDigitalRecord writes a single data record of digital values, such
// as trigger codes. Values must lie within each signal's digital range.
func (ew *Writer) WriteDigitalRecord(signals [][]int) error {
	digital := make([][]int16, len(signals))
	for i, samples := range signals {
		if i >= len(ew.hdr.Signals) {
			break
		}
		s := ew.hdr.Signals[i]
		digital[i] = make([]int16, len(samples))
		for j, v := range samples {
			if v < s.DigitalMin || v > s.DigitalMax {
				return fmt.Errorf("signal %q sample %d: value %d outside digital range [%d, %d]",
					s.Label, j, v, s.DigitalMin, s.DigitalMax)
			}
			digital[i][j] = int16(v)
		}
	}

	return ew.writeRecord(digital)
}

func (ew *Writer) writeRecord(signals [][]int16) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}

	var totalSamples int
	for i, signal := range signals {
		if want := ew.hdr.Signals[i].SamplesPerRecord; len(signal) != want {
			return fmt.Errorf("signal %q: expected %d samples, got %d", ew.hdr.Signals[i].Label, want, len(signal))
		}
		totalSamples += len(signal)
	}

	if totalSamples*2 > maxRecordBytes {
		return fmt.Errorf("data record too large: %d bytes, max is %d bytes", totalSamples*2, maxRecordBytes)
	}

	writer := bufio.NewWriter(ew.w)
	for _, signal := range signals {
		if err := binary.Write(writer, binary.LittleEndian, signal); err != nil {
			return err
		}
	}

	// Ensure all data is flushed to the underlying writer
	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// writeHeader rewinds and writes the EDF header, then leaves the writer
// positioned at the end of the file for further records.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	ew.hdr.HeaderBytes = 256 + (ew.hdr.SignalCount * 256)

	fields := []struct {
		value string
		width int
	}{
		{string(ew.hdr.Version), 8},
		{ew.hdr.PatientID, 80},
		{ew.hdr.RecordingID, 80},
		{ew.hdr.StartTime.Format("02.01.06"), 8},
		{ew.hdr.StartTime.Format("15.04.05"), 8},
		{strconv.Itoa(ew.hdr.HeaderBytes), 8},
		{"", 44},
		{strconv.Itoa(ew.hdr.DataRecords), 8},
		{strconv.FormatFloat(ew.hdr.DataRecordDuration.Seconds(), 'f', -1, 64), 8},
		{strconv.Itoa(ew.hdr.SignalCount), 4},
	}

	writer := bufio.NewWriter(ew.w)
	for _, f := range fields {
		if _, err := writer.WriteString(pad(f.value, f.width)); err != nil {
			return err
		}
	}

	for _, f := range signalFields {
		for _, signal := range ew.hdr.Signals {
			if _, err := writer.WriteString(pad(f.format(signal), f.width)); err != nil {
				return err
			}
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	_, err := ew.w.Seek(0, io.SeekEnd)
	return err
}

// convertPhysicalToDigital converts a physical value to a digital value using the calibration factors.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := ((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin)
	return int16(digital)
}
