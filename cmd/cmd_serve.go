// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cartobase/addrharvest/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the read-only status API",
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		srv := server.NewServer(repos.batches, repos.countries, repos.addresses)

		return srv.Run(serveListen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(
		&serveListen,
		"listen",
		"localhost:8080",
		"Address to serve the API on",
	)
}
