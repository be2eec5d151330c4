// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cartobase/addrharvest/store"
)

// Sink receives finished batches.
type Sink interface {
	Save(batch *store.Batch) error
}

// RepositorySink writes batches to the batch repository.
type RepositorySink struct {
	Repo store.BatchRepository
}

func (s *RepositorySink) Save(batch *store.Batch) error {
	return s.Repo.Insert(batch)
}

// FileSink appends batches to a local JSONL file. It is the fallback when
// the store is unreachable: extraction is a long single pass, so completed
// batches must land somewhere rather than be dropped.
type FileSink struct {
	Path string
}

type batchLine struct {
	IDs         string `json:"ids"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Status      string `json:"status"`
}

func (s *FileSink) Save(batch *store.Batch) error {
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - path is provided by admin
	if err != nil {
		return fmt.Errorf("opening fallback log %q: %w", s.Path, err)
	}
	defer f.Close()

	line, err := json.Marshal(batchLine{
		IDs:         strings.Join(batch.OSMIDs, ","),
		CountryCode: batch.CountryCode,
		CountryName: batch.CountryName,
		Status:      store.BatchOrigin,
	})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to fallback log %q: %w", s.Path, err)
	}

	return nil
}

// FailoverSink tries the primary sink and degrades to the fallback on the
// first failure. Once degraded it stays on the fallback; a store that just
// went away is not worth probing once per batch.
type FailoverSink struct {
	Primary  Sink
	Fallback Sink

	degraded bool
}

func (s *FailoverSink) Save(batch *store.Batch) error {
	if !s.degraded {
		err := s.Primary.Save(batch)
		if err == nil {
			return nil
		}

		log.Printf("store unavailable, switching to fallback log: %v", err)
		s.degraded = true
	}

	return s.Fallback.Save(batch)
}

// Degraded reports whether the primary sink has failed.
func (s *FailoverSink) Degraded() bool {
	return s.degraded
}
