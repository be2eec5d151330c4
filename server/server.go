// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes a read-only HTTP API over the pipeline state:
// country progress, batch queue depth and output quality. It never mutates
// anything; operators drive the pipeline through the CLI.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cartobase/addrharvest/report"
	"github.com/cartobase/addrharvest/store"
)

// Server serves the status API.
type Server struct {
	batches   store.BatchRepository
	countries store.CountryRepository
	addresses store.AddressRepository
}

// NewServer creates a Server over the three repositories.
func NewServer(batches store.BatchRepository, countries store.CountryRepository, addresses store.AddressRepository) *Server {
	return &Server{
		batches:   batches,
		countries: countries,
		addresses: addresses,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/countries", s.listCountries)
	r.GET("/api/countries/status", s.countryStatus)
	r.GET("/api/batches/status", s.batchStatus)
	r.GET("/api/addresses/counts", s.addressCounts)
	r.GET("/api/report/penalties", s.penaltyReport)
	r.GET("/api/report/low-coverage", s.lowCoverage)

	return r
}

// Run serves the API on addr.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) listCountries(ctx *gin.Context) {
	list, err := s.countries.List()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	type countryInfo struct {
		Name   string `json:"name"`
		Code   string `json:"code"`
		Status string `json:"status"`
	}

	out := make([]countryInfo, 0, len(list))
	for _, c := range list {
		out = append(out, countryInfo{Name: c.Name, Code: c.Code, Status: c.Status})
	}

	ctx.JSON(http.StatusOK, out)
}

func (s *Server) countryStatus(ctx *gin.Context) {
	counts, err := s.countries.StatusCounts()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, counts)
}

func (s *Server) batchStatus(ctx *gin.Context) {
	counts, err := s.batches.CountByStatus(ctx.Query("country_code"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, counts)
}

func (s *Server) addressCounts(ctx *gin.Context) {
	counts, err := s.addresses.CountByCountry()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, counts)
}

func (s *Server) penaltyReport(ctx *gin.Context) {
	rep, err := report.Build(s.addresses)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, rep)
}

func (s *Server) lowCoverage(ctx *gin.Context) {
	threshold := 0

	if param := ctx.Query("threshold"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold parameter"})

			return
		}

		threshold = parsed
	}

	low, err := report.LowCoverage(s.addresses, threshold)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if low == nil {
		low = []string{}
	}

	ctx.JSON(http.StatusOK, low)
}
