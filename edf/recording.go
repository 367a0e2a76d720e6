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
	"errors"
	"fmt"
	"io"
)

// Recording exposes the signals of an EDF file as integer channels. The
// recording runs at the rate of its fastest signal; only signals sampled
// at that rate can be read as channels. Sample numbering starts at 0.
type Recording struct {
	er       *Reader
	fastest  int // Samples per record of the fastest signal
	nSamples int
}

// NewRecording wraps an opened EDF reader.
func NewRecording(er *Reader) (*Recording, error) {
	if er.hdr.DataRecords < 0 {
		return nil, ErrUnknownLength
	}
	if er.hdr.DataRecordDuration <= 0 {
		return nil, fmt.Errorf("invalid data record duration: %s", er.hdr.DataRecordDuration)
	}

	fastest := 0
	for _, s := range er.hdr.Signals {
		if s.Label != Annotations {
			fastest = max(fastest, s.SamplesPerRecord)
		}
	}

	return &Recording{
		er:       er,
		fastest:  fastest,
		nSamples: fastest * er.hdr.DataRecords,
	}, nil
}

// OpenRecording opens an EDF file as a Recording.
func OpenRecording(r io.ReadSeeker) (*Recording, error) {
	er, err := Open(r)
	if err != nil {
		return nil, err
	}
	return NewRecording(er)
}

// ChannelNames returns the signal labels in file order.
func (rec *Recording) ChannelNames() []string {
	names := make([]string, len(rec.er.hdr.Signals))
	for i, s := range rec.er.hdr.Signals {
		names[i] = s.Label
	}
	return names
}

// FirstSamp is always 0, EDF files are not cropped segments.
func (rec *Recording) FirstSamp() int { return 0 }

func (rec *Recording) LastSamp() int { return rec.nSamples - 1 }

func (rec *Recording) SampleRate() float64 {
	return float64(rec.fastest) / rec.er.hdr.DataRecordDuration.Seconds()
}

// ReadChannels reads the digital values of the picked signals.
func (rec *Recording) ReadChannels(picks []int) ([][]int, error) {
	data := make([][]int, len(picks))
	for i, pick := range picks {
		sr, err := rec.er.Signal(pick)
		if err != nil {
			return nil, err
		}
		if sr.signal.Label == Annotations || sr.signal.SamplesPerRecord != rec.fastest {
			return nil, fmt.Errorf("%w: signal %q has %d samples per record, recording has %d",
				ErrSampleRateMismatch, sr.signal.Label, sr.signal.SamplesPerRecord, rec.fastest)
		}

		data[i] = make([]int, rec.nSamples)
		n, err := sr.ReadDigital(data[i])
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading signal %q: %w", sr.signal.Label, err)
		}
		if n != rec.nSamples {
			return nil, fmt.Errorf("signal %q: read %d of %d samples: %w", sr.signal.Label, n, rec.nSamples, io.ErrUnexpectedEOF)
		}
	}

	return data, nil
}
