// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/cartobase/addrharvest/geocoder"
	"github.com/cartobase/addrharvest/schedule"
	"github.com/cartobase/addrharvest/validate"
)

var validateOptions = struct {
	nominatimURL string
	interval     time.Duration
	staleTimeout time.Duration
	binaryScore  bool
	sweepOnly    bool
}{}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Claims pending batches and validates them against the geocoder",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		client := geocoder.NewNominatim(geocoder.NominatimOptions{
			BaseURL:   validateOptions.nominatimURL,
			UserAgent: fmt.Sprintf("addrharvest/%s (+https://github.com/cartobase/addrharvest)", Version),
			Limiter:   geocoder.NewIntervalLimiter(validateOptions.interval),
		})

		validator := validate.NewValidator(validate.Options{
			Geocoder:    client,
			Addresses:   repos.addresses,
			BinaryScore: validateOptions.binaryScore,
			Progress:    true,
		})

		scheduler := schedule.NewScheduler(schedule.Options{
			Batches:      repos.batches,
			Countries:    repos.countries,
			Processor:    validator,
			StaleTimeout: validateOptions.staleTimeout,
		})

		// Recover work abandoned by crashed workers before taking new work.
		if _, err := scheduler.Sweep(); err != nil {
			return fmt.Errorf("sweeping stale work: %w", err)
		}

		if validateOptions.sweepOnly {
			return nil
		}

		metrics, err := scheduler.Run(cmd.Context())
		if metrics != nil {
			log.Printf(
				"validation finished - %d processed, %d saved, %d unresolved, %d rejected, %d errors",
				metrics.Processed, metrics.Saved, metrics.Unresolved, metrics.Rejected(), metrics.Errors,
			)
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(
		&validateOptions.nominatimURL,
		"nominatim-url",
		"https://nominatim.openstreetmap.org",
		"Base URL of the geocoding service",
	)
	validateCmd.Flags().DurationVar(
		&validateOptions.interval,
		"interval",
		time.Second,
		"Minimum delay between geocoder requests",
	)
	validateCmd.Flags().DurationVar(
		&validateOptions.staleTimeout,
		"stale-timeout",
		schedule.DefaultStaleTimeout,
		"Age after which a claimed batch is assumed abandoned",
	)
	validateCmd.Flags().BoolVar(
		&validateOptions.binaryScore,
		"binary-score",
		false,
		"Score by free-text corroboration instead of bounding-box size",
	)
	validateCmd.Flags().BoolVar(
		&validateOptions.sweepOnly,
		"sweep-only",
		false,
		"Only recover stale work, then exit",
	)
}
