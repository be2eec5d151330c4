// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartobase/addrharvest/extract"
	"github.com/cartobase/addrharvest/spatial"
)

var extractOptions = struct {
	country      string
	code         string
	include      []string
	exclude      []string
	batchSize    int
	procs        int
	fallbackPath string
}{}

var extractCmd = &cobra.Command{
	Use:   "extract <file.osm.pbf>",
	Short: "Extracts candidate address batches from an OSM PBF extract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractOptions.country == "" {
			return fmt.Errorf("--country is required")
		}

		code := extractOptions.code
		if code == "" {
			resolver, err := loadResolver()
			if err != nil {
				return err
			}

			resolved, ok := resolver.Resolve(extractOptions.country)
			if !ok {
				return fmt.Errorf("cannot resolve a country code for %q, pass --code", extractOptions.country)
			}

			code = resolved
		}

		include, err := parseBoxes(extractOptions.include)
		if err != nil {
			return fmt.Errorf("parsing --include: %w", err)
		}

		exclude, err := parseBoxes(extractOptions.exclude)
		if err != nil {
			return fmt.Errorf("parsing --exclude: %w", err)
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		sink := &extract.FailoverSink{
			Primary:  &extract.RepositorySink{Repo: repos.batches},
			Fallback: &extract.FileSink{Path: extractOptions.fallbackPath},
		}

		extractor := extract.NewExtractor(extract.Options{
			CountryCode: strings.ToLower(code),
			CountryName: extractOptions.country,
			Include:     include,
			Exclude:     exclude,
			BatchSize:   extractOptions.batchSize,
			Progress:    true,
			Procs:       extractOptions.procs,
		}, sink)

		metrics, err := extractor.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		log.Printf(
			"extraction finished - %d elements selected into %d batches (%d nodes, %d ways, %d relations seen)",
			metrics.Selected, metrics.Batches, metrics.Nodes, metrics.Ways, metrics.Relations,
		)

		if sink.Degraded() {
			log.Printf("store was unavailable; batches were appended to %s", extractOptions.fallbackPath)
		}

		return nil
	},
}

// parseBoxes parses repeated "minLon,minLat,maxLon,maxLat" flags.
func parseBoxes(specs []string) ([]spatial.Box, error) {
	var boxes []spatial.Box

	for _, spec := range specs {
		parts := strings.Split(spec, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("%q: want minLon,minLat,maxLon,maxLat", spec)
		}

		values := make([]float64, 4)

		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", spec, err)
			}

			values[i] = v
		}

		box := spatial.Box{MinLon: values[0], MinLat: values[1], MaxLon: values[2], MaxLat: values[3]}
		if box.MinLon >= box.MaxLon || box.MinLat >= box.MaxLat {
			return nil, fmt.Errorf("%q: empty box", spec)
		}

		boxes = append(boxes, box)
	}

	return boxes, nil
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(
		&extractOptions.country,
		"country",
		"",
		"Country name the batches belong to",
	)
	extractCmd.Flags().StringVar(
		&extractOptions.code,
		"code",
		"",
		"ISO country code; resolved from the name when omitted",
	)
	extractCmd.Flags().StringArrayVar(
		&extractOptions.include,
		"include",
		nil,
		"Region to include as minLon,minLat,maxLon,maxLat; repeatable. Omit for plain house-number extraction",
	)
	extractCmd.Flags().StringArrayVar(
		&extractOptions.exclude,
		"exclude",
		nil,
		"Region to carve out of the included regions; repeatable",
	)
	extractCmd.Flags().IntVar(
		&extractOptions.batchSize,
		"batch-size",
		extract.DefaultBatchSize,
		"Number of element ids per batch",
	)
	extractCmd.Flags().IntVar(
		&extractOptions.procs,
		"procs",
		1,
		"PBF decoder parallelism",
	)
	extractCmd.Flags().StringVar(
		&extractOptions.fallbackPath,
		"fallback",
		"batches-fallback.jsonl",
		"Append-only log used when the store is unavailable",
	)
}
