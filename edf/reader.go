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
	"strings"
	"time"
)

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to header: %w", err)
	}
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	field := func(lo, hi int) string {
		return strings.TrimSpace(string(b[lo:hi]))
	}

	hdr := &Header{
		Version:     Version(field(0, 8)),
		PatientID:   field(8, 88),
		RecordingID: field(88, 168),
	}

	startDate, err := time.Parse("02.01.06", field(168, 176))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(field(184, 192)); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}

	if hdr.DataRecords, err = strconv.Atoi(field(236, 244)); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}

	hdr.DataRecordDuration, err = time.ParseDuration(field(244, 252) + "s")
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}

	if hdr.SignalCount, err = strconv.Atoi(field(252, 256)); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count: %d", hdr.SignalCount)
	}

	hdr.Signals = make([]Signal, hdr.SignalCount)
	for _, f := range signalFields {
		b := make([]byte, f.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, b); err != nil {
				return nil, fmt.Errorf("error reading signal %s: %w", f.name, err)
			}
			f.parse(&hdr.Signals[i], strings.TrimSpace(string(b)))
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// Header returns a copy of the parsed file header.
func (er *Reader) Header() Header {
	hdr := *er.hdr
	hdr.Signals = append([]Signal(nil), er.hdr.Signals...)
	return hdr
}

// SignalReader reads continuous signal data from an EDF/EDF+ file, one data
// record at a time.
type SignalReader struct {
	r             io.ReadSeeker
	hdr           *Header
	signal        Signal
	recordSize    int     // Total size of one data record in bytes
	signalOffset  int     // Byte offset of the signal in a record
	currentRecord int     // Current record being processed
	currentSample int     // Current sample in the record
	record        []int16 // Samples of the signal in currentRecord
	loaded        int     // Record held in record, -1 if none
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index %d out of range", signalIndex)
	}

	recordSize := 0
	signalOffset := 0
	for i, sig := range er.hdr.Signals {
		if i < signalIndex {
			signalOffset += sig.SamplesPerRecord * 2
		}
		recordSize += sig.SamplesPerRecord * 2
	}

	signal := er.hdr.Signals[signalIndex]
	return &SignalReader{
		r:            er.r,
		hdr:          er.hdr,
		signal:       signal,
		recordSize:   recordSize,
		signalOffset: signalOffset,
		record:       make([]int16, signal.SamplesPerRecord),
		loaded:       -1,
	}, nil
}

// ReadDigital fills data with the raw digital values of the signal, which
// is how trigger channels store their codes.
func (sr *SignalReader) ReadDigital(data []int) (int, error) {
	return sr.read(len(data), func(i int, v int16) {
		data[i] = int(v)
	})
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	s := sr.signal
	return sr.read(len(data), func(i int, v int16) {
		data[i] = convertDigitalToPhysical(v, s.DigitalMin, s.DigitalMax, s.PhysicalMin, s.PhysicalMax)
	})
}

func (sr *SignalReader) read(count int, emit func(i int, v int16)) (int, error) {
	if sr.signal.SamplesPerRecord <= 0 {
		return 0, io.EOF
	}

	n := 0
	for n < count {
		if sr.currentRecord >= sr.hdr.DataRecords {
			return n, io.EOF // End of data records
		}

		if sr.loaded != sr.currentRecord {
			if err := sr.loadRecord(); err != nil {
				return n, err
			}
		}

		for ; n < count && sr.currentSample < len(sr.record); n++ {
			emit(n, sr.record[sr.currentSample])
			sr.currentSample++
		}

		// Move to the next record
		if sr.currentSample >= len(sr.record) {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

func (sr *SignalReader) loadRecord() error {
	pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset)
	if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}

	if err := binary.Read(sr.r, binary.LittleEndian, sr.record); err != nil {
		return fmt.Errorf("error reading sample data: %w", err)
	}
	sr.loaded = sr.currentRecord

	return nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}
