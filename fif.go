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
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Tag kinds and data types of the binary event container.
const (
	tagFileID     int32 = 100
	tagDirPointer int32 = 101
	tagBlockStart int32 = 104
	tagBlockEnd   int32 = 105
	tagFreeList   int32 = 106
	tagNop        int32 = 108
	tagDesc       int32 = 206
	tagEventList  int32 = 3507

	blockEvents int32 = 115

	typeVoid   int32 = 0
	typeInt    int32 = 3
	typeString int32 = 10
	typeID     int32 = 31

	nextSeq  int32 = 0
	nextNone int32 = -1

	fileVersion int32 = 1<<16 | 3
	maxTagSize        = 1 << 30
)

type tagHeader struct {
	Kind int32
	Type int32
	Size int32
	Next int32
}

// WriteEventsFIF writes events to w as a tagged binary block. The event
// list is stored as a flat int32 array of sample, value and id triples.
// Mappings from labels to ids are stored as "label:id;label:id" when
// not empty.
func WriteEventsFIF(w io.Writer, events []Event, mappings map[string]int) error {
	list, err := encodeEvents(events)
	if err != nil {
		return err
	}
	for label := range mappings {
		if strings.ContainsRune(label, ';') {
			return fmt.Errorf("%w: event mapping label %q contains ';'", ErrInvalidArgument, label)
		}
	}

	writer := bufio.NewWriter(w)

	now := time.Now()
	id := []int32{fileVersion, 0, 0, int32(now.Unix()), int32(now.Nanosecond() / 1000)}
	if err := writeTag(writer, tagFileID, typeID, id); err != nil {
		return err
	}
	if err := writeTag(writer, tagDirPointer, typeInt, []int32{-1}); err != nil {
		return err
	}
	if err := writeTag(writer, tagFreeList, typeInt, []int32{-1}); err != nil {
		return err
	}
	if err := writeTag(writer, tagBlockStart, typeInt, []int32{blockEvents}); err != nil {
		return err
	}

	if err := writeTag(writer, tagEventList, typeInt, list); err != nil {
		return err
	}

	if len(mappings) > 0 {
		if err := writeTag(writer, tagDesc, typeString, []byte(formatMappings(mappings))); err != nil {
			return err
		}
	}

	if err := writeTag(writer, tagBlockEnd, typeInt, []int32{blockEvents}); err != nil {
		return err
	}

	if err := binary.Write(writer, binary.BigEndian, tagHeader{Kind: tagNop, Type: typeVoid, Next: nextNone}); err != nil {
		return err
	}

	return writer.Flush()
}

// ReadEventsFIF reads the events block written by WriteEventsFIF, along
// with its label mappings (nil when absent).
func ReadEventsFIF(r io.Reader) ([]Event, map[string]int, error) {
	reader := bufio.NewReader(r)

	var (
		list     []int32
		desc     string
		hasList  bool
		hasBlock bool
		depth    int
		inEvents bool
	)
	for {
		var hdr tagHeader
		if err := binary.Read(reader, binary.BigEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("error reading tag header: %w", err)
		}
		if hdr.Size < 0 || hdr.Size > maxTagSize {
			return nil, nil, fmt.Errorf("%w: invalid tag size %d", ErrValidation, hdr.Size)
		}

		data := make([]byte, hdr.Size)
		if _, err := io.ReadFull(reader, data); err != nil {
			return nil, nil, fmt.Errorf("error reading tag data: %w", err)
		}

		switch hdr.Kind {
		case tagBlockStart:
			depth++
			if kind, ok := firstInt(data); ok && kind == blockEvents && !hasBlock {
				hasBlock, inEvents = true, true
			}
		case tagBlockEnd:
			depth--
			if kind, ok := firstInt(data); ok && kind == blockEvents {
				inEvents = false
			}
		case tagEventList:
			if inEvents && !hasList {
				if len(data)%4 != 0 {
					return nil, nil, fmt.Errorf("%w: event list is not an int32 array", ErrValidation)
				}
				list = make([]int32, len(data)/4)
				if _, err := binary.Decode(data, binary.BigEndian, list); err != nil {
					return nil, nil, fmt.Errorf("error decoding event list: %w", err)
				}
				hasList = true
			}
		case tagDesc:
			if inEvents {
				desc = string(data)
			}
		}

		if hdr.Next == nextNone && depth <= 0 {
			break
		}
	}

	if !hasBlock {
		return nil, nil, fmt.Errorf("%w: could not find event data", ErrNotFound)
	}
	if !hasList {
		return nil, nil, fmt.Errorf("%w: could not find any events", ErrNotFound)
	}
	if len(list)%3 != 0 {
		return nil, nil, fmt.Errorf("%w: event list length %d is not a multiple of 3", ErrValidation, len(list))
	}

	events := make([]Event, len(list)/3)
	for i := range events {
		events[i] = Event{Sample: int(list[3*i]), Value: int(list[3*i+1]), ID: int(list[3*i+2])}
	}

	var mappings map[string]int
	if desc != "" {
		var err error
		if mappings, err = parseMappings(desc); err != nil {
			return nil, nil, err
		}
	}

	return events, mappings, nil
}

// parseMappings parses "label:id;label:id". Labels may themselves contain
// colons, the id follows the last one.
func parseMappings(desc string) (map[string]int, error) {
	mappings := make(map[string]int)
	for _, m := range strings.Split(desc, ";") {
		i := strings.LastIndexByte(m, ':')
		if i < 0 {
			return nil, fmt.Errorf("%w: malformed event mapping %q", ErrInvalidArgument, m)
		}
		id, err := strconv.Atoi(strings.TrimSpace(m[i+1:]))
		if err != nil {
			return nil, fmt.Errorf("%w: malformed event id in mapping %q", ErrInvalidArgument, m)
		}
		mappings[m[:i]] = id
	}
	return mappings, nil
}

// encodeEvents flattens events into sample, value and id triples. Every
// column must fit in an int32.
func encodeEvents(events []Event) ([]int32, error) {
	list := make([]int32, 0, 3*len(events))
	for i, e := range events {
		for _, v := range [...]int{e.Sample, e.Value, e.ID} {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("%w: event %d value %d does not fit in int32", ErrInvalidArgument, i, v)
			}
			list = append(list, int32(v))
		}
	}
	return list, nil
}

func formatMappings(mappings map[string]int) string {
	labels := slices.SortedFunc(maps.Keys(mappings), func(a, b string) int {
		if c := cmp.Compare(mappings[a], mappings[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = label + ":" + strconv.Itoa(mappings[label])
	}
	return strings.Join(parts, ";")
}

func writeTag[T int32 | byte](w io.Writer, kind, typ int32, data []T) error {
	size := binary.Size(data)
	if err := binary.Write(w, binary.BigEndian, tagHeader{Kind: kind, Type: typ, Size: int32(size), Next: nextSeq}); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, data)
}

func firstInt(data []byte) (int32, bool) {
	if len(data) < 4 {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(data)), true
}
