// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	concurrency int
	duration    time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "cellstore [command] (flags)",
	Short: "cellstore benchmarking tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		writeCmd,
		scanCmd,
	)

	for _, cmd := range []*cobra.Command{writeCmd, scanCmd} {
		cmd.Flags().IntVarP(
			&concurrency, "concurrency", "c", 1, "number of concurrent workers")
		cmd.Flags().DurationVarP(
			&duration, "duration", "d", 10*time.Second, "the duration to run")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "print per-second progress")
	}

	writeCmd.Flags().IntVar(
		&writeBatch, "batch", 10, "number of cells in each batch")
	writeCmd.Flags().IntVar(
		&writeValueSize, "value", 64, "size of values to write")
	writeCmd.Flags().IntVar(
		&writeRows, "rows", 100000, "number of distinct rows")
	writeCmd.Flags().DurationVar(
		&writeFlushEvery, "flush-every", time.Second, "interval between memstore flushes")

	scanCmd.Flags().IntVar(
		&scanRows, "rows", 10000, "number of preloaded rows")
	scanCmd.Flags().IntVar(
		&scanVersions, "preload-versions", 3, "number of versions preloaded per column")
	scanCmd.Flags().IntVar(
		&scanSpan, "span", 100, "number of rows each scan covers")
	scanCmd.Flags().IntVar(
		&scanMaxVersions, "versions", 0, "max versions returned per column (0 means all)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
