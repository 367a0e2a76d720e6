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
	"bufio"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/OpenPSG/stim"
	"github.com/OpenPSG/stim/edf"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	verbose    bool
	cfg        Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stimevents",
		Short: "Extract and edit trigger channel events",
		Long: `stimevents finds events in the stim (trigger) channels of EDF recordings
and manipulates event files in text (.eve, -eve.txt, -eve.lst) or binary
(-eve.fif, -eve.fif.gz) form.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelInfo
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log informational diagnostics")

	root.AddCommand(
		a.findCmd(),
		a.stepsCmd(),
		a.pickCmd(),
		a.mergeCmd(),
		a.shiftCmd(),
		a.fixedCmd(),
		a.targetCmd(),
		a.concatCmd(),
	)

	return root
}

func (a *app) findCmd() *cobra.Command {
	var (
		out          string
		concat       bool
		stimChannels []string
		output       string
		consecutive  string
		minDuration  float64
		shortest     int
		mask         int
		uintCast     bool
	)

	cmd := &cobra.Command{
		Use:   "find <recording.edf>...",
		Short: "Find events in the stim channels of EDF recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("stim-channel") {
				cfg.StimChannels = stimChannels
			}
			if flags.Changed("output") {
				cfg.Output = output
			}
			if flags.Changed("consecutive") {
				cfg.Consecutive = consecutive
			}
			if flags.Changed("min-duration") {
				cfg.MinDuration = minDuration
			}
			if flags.Changed("shortest-event") {
				cfg.ShortestEvent = shortest
			}
			if flags.Changed("mask") {
				cfg.Mask = mask
			}
			if flags.Changed("uint-cast") {
				cfg.UintCast = uintCast
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			opts, err := cfg.FindOptions(a.logger)
			if err != nil {
				return err
			}

			if len(args) > 1 && !concat {
				return fmt.Errorf("%d recordings given, use --concat to join their events", len(args))
			}

			raws, closeAll, err := openRecordings(args)
			if err != nil {
				return err
			}
			defer closeAll()

			var events []stim.Event
			if concat {
				events, err = stim.ConcatenateRecordings(cmd.Context(), raws, opts, cfg.Concurrency)
			} else {
				events, err = stim.FindEventsRaw(raws[0], opts)
			}
			if err != nil {
				return err
			}

			return a.writeEvents(cmd, out, events, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "events file to write, stdout if empty")
	flags.BoolVar(&concat, "concat", false, "join the events of all recordings as if concatenated")
	flags.StringSliceVar(&stimChannels, "stim-channel", nil, "stim channel labels")
	flags.StringVar(&output, "output", "onset", "onset, offset or step")
	flags.StringVar(&consecutive, "consecutive", "increasing", "increasing, always or never")
	flags.Float64Var(&minDuration, "min-duration", 0, "minimum event duration in seconds")
	flags.IntVar(&shortest, "shortest-event", 2, "minimum number of samples between events")
	flags.IntVar(&mask, "mask", 0, "trigger bits to ignore")
	flags.BoolVar(&uintCast, "uint-cast", false, "read the stim channel as uint16")

	return cmd
}

func (a *app) stepsCmd() *cobra.Command {
	var (
		out          string
		stimChannels []string
		padStart     int
		padStop      int
		merge        int
	)

	cmd := &cobra.Command{
		Use:   "steps <recording.edf>",
		Short: "List every step of the stim channels as sample, before and after values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channels := a.cfg.StimChannels
			if cmd.Flags().Changed("stim-channel") {
				channels = stimChannels
			}

			opts := stim.StepOptions{Merge: merge, Logger: a.logger}
			if cmd.Flags().Changed("pad-start") {
				opts.PadStart = &padStart
			}
			if cmd.Flags().Changed("pad-stop") {
				opts.PadStop = &padStop
			}

			raws, closeAll, err := openRecordings(args)
			if err != nil {
				return err
			}
			defer closeAll()

			steps, err := stim.FindStimStepsRaw(raws[0], channels, opts)
			if err != nil {
				return err
			}

			events := make([]stim.Event, len(steps))
			for i, s := range steps {
				events[i] = stim.Event{Sample: s.Sample, Value: s.Before, ID: s.After}
			}
			return a.writeEvents(cmd, out, events, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "file to write, stdout if empty")
	flags.StringSliceVar(&stimChannels, "stim-channel", nil, "stim channel labels")
	flags.IntVar(&padStart, "pad-start", 0, "value assumed before the recording")
	flags.IntVar(&padStop, "pad-stop", 0, "value assumed after the recording")
	flags.IntVar(&merge, "merge", 0, "merge steps this many samples apart, negative merges toward the earlier step")

	return cmd
}

func (a *app) pickCmd() *cobra.Command {
	var (
		out     string
		include []int
		exclude []int
		step    bool
	)

	cmd := &cobra.Command{
		Use:   "pick <events>",
		Short: "Keep or drop events by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, mappings, err := a.readEvents(args[0])
			if err != nil {
				return err
			}

			opts := stim.PickOptions{Step: step}
			if cmd.Flags().Changed("include") {
				opts.Include = include
			}
			if cmd.Flags().Changed("exclude") {
				opts.Exclude = exclude
			}

			events, err = stim.PickEvents(events, opts)
			if err != nil {
				return err
			}

			return a.writeEvents(cmd, out, events, mappings)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "events file to write, stdout if empty")
	flags.IntSliceVar(&include, "include", nil, "ids to keep, takes precedence over --exclude")
	flags.IntSliceVar(&exclude, "exclude", nil, "ids to drop")
	flags.BoolVar(&step, "step", false, "also match the value column of step events")

	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var (
		out          string
		ids          []int
		newID        int
		keepOriginal bool
	)

	cmd := &cobra.Command{
		Use:   "merge <events>",
		Short: "Relabel a set of event ids with a single id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, mappings, err := a.readEvents(args[0])
			if err != nil {
				return err
			}

			events = stim.MergeEvents(events, ids, newID, !keepOriginal)

			return a.writeEvents(cmd, out, events, mappings)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "events file to write, stdout if empty")
	flags.IntSliceVar(&ids, "ids", nil, "ids to merge")
	flags.IntVar(&newID, "new-id", 0, "id replacing the merged ids")
	flags.BoolVar(&keepOriginal, "keep-original", false, "keep the original events next to the relabelled ones")
	_ = cmd.MarkFlagRequired("ids")
	_ = cmd.MarkFlagRequired("new-id")

	return cmd
}

func (a *app) shiftCmd() *cobra.Command {
	var (
		out    string
		ids    []int
		tshift float64
		sfreq  float64
	)

	cmd := &cobra.Command{
		Use:   "shift <events>",
		Short: "Shift events of the given ids in time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, mappings, err := a.readEvents(args[0])
			if err != nil {
				return err
			}

			events = stim.ShiftTimeEvents(events, ids, tshift, sfreq)

			return a.writeEvents(cmd, out, events, mappings)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "events file to write, stdout if empty")
	flags.IntSliceVar(&ids, "ids", nil, "ids to shift")
	flags.Float64Var(&tshift, "tshift", 0, "shift in seconds, negative shifts backward")
	flags.Float64Var(&sfreq, "sfreq", 0, "sampling frequency in Hz")
	_ = cmd.MarkFlagRequired("ids")
	_ = cmd.MarkFlagRequired("sfreq")

	return cmd
}

func (a *app) fixedCmd() *cobra.Command {
	var (
		out           string
		id            int
		start         float64
		stop          float64
		duration      float64
		skipFirstSamp bool
	)

	cmd := &cobra.Command{
		Use:   "fixed <recording.edf>",
		Short: "Make events separated by a fixed duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raws, closeAll, err := openRecordings(args)
			if err != nil {
				return err
			}
			defer closeAll()

			opts := stim.FixedLengthOptions{
				Start:         start,
				Duration:      duration,
				SkipFirstSamp: skipFirstSamp,
			}
			if cmd.Flags().Changed("stop") {
				opts.Stop = &stop
			}

			events, err := stim.MakeFixedLengthEvents(raws[0], id, opts)
			if err != nil {
				return err
			}

			return a.writeEvents(cmd, out, events, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "events file to write, stdout if empty")
	flags.IntVar(&id, "id", 1, "event id")
	flags.Float64Var(&start, "start", 0, "time of the first event in seconds")
	flags.Float64Var(&stop, "stop", 0, "latest time of the last event in seconds, end of recording if unset")
	flags.Float64Var(&duration, "duration", 1, "seconds between events")
	flags.BoolVar(&skipFirstSamp, "skip-first-samp", false, "do not add the first sample of the recording")

	return cmd
}

func (a *app) targetCmd() *cobra.Command {
	var (
		out       string
		lagsPath  string
		reference int
		target    int
		sfreq     float64
		tmin      float64
		tmax      float64
		newID     int
		fillNA    int
	)

	cmd := &cobra.Command{
		Use:   "target <events>",
		Short: "Define events by a target event occurring near a reference event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, mappings, err := a.readEvents(args[0])
			if err != nil {
				return err
			}

			var opts stim.TargetOptions
			if cmd.Flags().Changed("new-id") {
				opts.NewID = &newID
			}
			if cmd.Flags().Changed("fill-na") {
				opts.FillNA = &fillNA
			}

			events, lags, err := stim.DefineTargetEvents(events, reference, target, sfreq, tmin, tmax, opts)
			if err != nil {
				return err
			}

			if lagsPath != "" {
				if err := writeLags(lagsPath, lags); err != nil {
					return err
				}
			}

			return a.writeEvents(cmd, out, events, mappings)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "events file to write, stdout if empty")
	flags.StringVar(&lagsPath, "lags", "", "file to write the lags in milliseconds to, one per line")
	flags.IntVar(&reference, "reference", 0, "reference event id")
	flags.IntVar(&target, "target", 0, "target event id")
	flags.Float64Var(&sfreq, "sfreq", 0, "sampling frequency in Hz")
	flags.Float64Var(&tmin, "tmin", 0, "window start in seconds relative to the reference")
	flags.Float64Var(&tmax, "tmax", 0, "window end in seconds relative to the reference")
	flags.IntVar(&newID, "new-id", 0, "id of matched reference events, the reference id if unset")
	flags.IntVar(&fillNA, "fill-na", 0, "id of reference events without a target, dropped if unset")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("sfreq")

	return cmd
}

func (a *app) concatCmd() *cobra.Command {
	var (
		out        string
		firstSamps []int
		lastSamps  []int
	)

	cmd := &cobra.Command{
		Use:   "concat <events>...",
		Short: "Join the event files of concatenated recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lists := make([][]stim.Event, len(args))
			for i, path := range args {
				events, _, err := a.readEvents(path)
				if err != nil {
					return err
				}
				lists[i] = events
			}

			events, err := stim.ConcatenateEvents(lists, firstSamps, lastSamps)
			if err != nil {
				return err
			}

			return a.writeEvents(cmd, out, events, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "events file to write, stdout if empty")
	flags.IntSliceVar(&firstSamps, "first-samps", nil, "first sample of each recording")
	flags.IntSliceVar(&lastSamps, "last-samps", nil, "last sample of each recording")
	_ = cmd.MarkFlagRequired("first-samps")
	_ = cmd.MarkFlagRequired("last-samps")

	return cmd
}

func (a *app) readEvents(path string) ([]stim.Event, map[string]int, error) {
	return stim.ReadEvents(path, stim.ReadOptions{Logger: a.logger})
}

func (a *app) writeEvents(cmd *cobra.Command, path string, events []stim.Event, mappings map[string]int) error {
	if path == "" {
		return stim.WriteEventsText(cmd.OutOrStdout(), events)
	}
	return stim.WriteEvents(path, events, stim.WriteOptions{Mappings: mappings, Logger: a.logger})
}

// openRecordings opens EDF files as recordings. The returned function
// closes every file that was opened.
func openRecordings(paths []string) ([]stim.Raw, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	raws := make([]stim.Raw, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("error opening recording: %w", err)
		}
		files = append(files, f)

		rec, err := edf.OpenRecording(f)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		raws = append(raws, rec)
	}

	return raws, closeAll, nil
}

func writeLags(path string, lags []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating lags file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, lag := range lags {
		if math.IsNaN(lag) {
			_, err = fmt.Fprintln(w, "nan")
		} else {
			_, err = fmt.Fprintf(w, "%.3f\n", lag)
		}
		if err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
