// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package extract streams an OSM PBF extract and emits batches of element
// ids worth geocoding. Two selection modes exist: plain mode takes every
// element with a house number, territory mode takes tagged buildings whose
// geometry touches a configured set of include regions. Territory mode is
// for dependent regions that share a source extract with a neighbor.
package extract

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/schollz/progressbar/v3"

	"github.com/cartobase/addrharvest/spatial"
)

// Tags that make a building worth geocoding: address components plus the
// names and uses that give a feature an identity.
var descriptiveTags = []string{
	"addr:street", "addr:city", "addr:town", "addr:village",
	"addr:suburb", "addr:district", "addr:region", "addr:postcode",
	"name", "amenity", "shop", "office", "tourism",
}

// Building values too vague on their own; these need an identity tag too.
var genericBuildings = map[string]bool{
	"yes":          true,
	"unclassified": true,
	"other":        true,
}

var identityTags = []string{"name", "amenity", "shop", "office"}

// Options configures an extraction run.
type Options struct {
	// CountryCode and CountryName tag every emitted batch.
	CountryCode string
	CountryName string

	// Include are the regions the territory occupies; empty means plain
	// mode, which selects by house number with no geographic filtering.
	Include []spatial.Box

	// Exclude carves neighbors out of the include regions.
	Exclude []spatial.Box

	// BatchSize per emitted batch; defaults to DefaultBatchSize.
	BatchSize int

	// Progress draws a progress bar on stderr when it is a terminal.
	Progress bool

	// Procs is the PBF decoder parallelism; defaults to 1.
	Procs int
}

// Metrics counts extraction outcomes.
type Metrics struct {
	Nodes     int
	Ways      int
	Relations int
	Selected  int
	Batches   int
}

// Merge adds other's counts into m.
func (m *Metrics) Merge(other *Metrics) {
	m.Nodes += other.Nodes
	m.Ways += other.Ways
	m.Relations += other.Relations
	m.Selected += other.Selected
	m.Batches += other.Batches
}

// Extractor scans a PBF file and feeds a sink with id batches.
type Extractor struct {
	options Options
	sink    Sink
}

// NewExtractor creates an Extractor emitting to sink.
func NewExtractor(options Options, sink Sink) *Extractor {
	if options.Procs <= 0 {
		options.Procs = 1
	}

	return &Extractor{options: options, sink: sink}
}

// Run extracts the file at path. Territory mode scans the file twice: the
// first pass indexes which nodes sit inside the include regions, the
// second selects buildings touching them. Plain mode is a single pass.
func (e *Extractor) Run(ctx context.Context, path string) (*Metrics, error) {
	metrics := &Metrics{}
	batcher := NewBatcher(e.sink, e.options.BatchSize, e.options.CountryCode, e.options.CountryName)

	if len(e.options.Include) == 0 {
		if err := e.scanPlain(ctx, path, batcher, metrics); err != nil {
			return metrics, err
		}
	} else {
		inRegion, err := e.indexRegionNodes(ctx, path, metrics)
		if err != nil {
			return metrics, err
		}

		if err := e.scanTerritory(ctx, path, inRegion, batcher, metrics); err != nil {
			return metrics, err
		}
	}

	if err := batcher.Flush(); err != nil {
		return metrics, fmt.Errorf("flushing final batch: %w", err)
	}

	metrics.Batches = batcher.Emitted()

	return metrics, nil
}

func (e *Extractor) newScanner(ctx context.Context, path string) (*osmpbf.Scanner, io.Closer, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by admin
	if err != nil {
		return nil, nil, fmt.Errorf("opening extract %q: %w", path, err)
	}

	return osmpbf.New(ctx, f, e.options.Procs), f, nil
}

func (e *Extractor) newBar(description string) *progressbar.ProgressBar {
	if !e.options.Progress || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// scanPlain selects every element carrying a house number.
func (e *Extractor) scanPlain(ctx context.Context, path string, batcher *Batcher, metrics *Metrics) error {
	scanner, closer, err := e.newScanner(ctx, path)
	if err != nil {
		return err
	}

	defer closer.Close()
	defer scanner.Close()

	bar := e.newBar("Extracting " + e.options.CountryName)

	for scanner.Scan() {
		if bar != nil {
			_ = bar.Add(1)
		}

		var id string

		var tags osm.Tags

		switch o := scanner.Object().(type) {
		case *osm.Node:
			metrics.Nodes++
			id = "N" + strconv.FormatInt(int64(o.ID), 10)
			tags = o.Tags
		case *osm.Way:
			metrics.Ways++
			id = "W" + strconv.FormatInt(int64(o.ID), 10)
			tags = o.Tags
		case *osm.Relation:
			metrics.Relations++
			id = "R" + strconv.FormatInt(int64(o.ID), 10)
			tags = o.Tags
		default:
			continue
		}

		if tags.Find("addr:housenumber") == "" {
			continue
		}

		metrics.Selected++

		if err := batcher.Add(id); err != nil {
			return fmt.Errorf("emitting batch: %w", err)
		}
	}

	return scanner.Err()
}

// indexRegionNodes records which node ids fall inside the include regions
// and outside the exclude regions. The set stays small because territory
// extracts cover dependent regions, not continents.
func (e *Extractor) indexRegionNodes(ctx context.Context, path string, metrics *Metrics) (map[osm.NodeID]struct{}, error) {
	scanner, closer, err := e.newScanner(ctx, path)
	if err != nil {
		return nil, err
	}

	defer closer.Close()
	defer scanner.Close()

	scanner.SkipWays = true
	scanner.SkipRelations = true

	bar := e.newBar("Indexing " + e.options.CountryName)

	inRegion := make(map[osm.NodeID]struct{})

	for scanner.Scan() {
		if bar != nil {
			_ = bar.Add(1)
		}

		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}

		metrics.Nodes++

		if e.inTerritory(node.Lon, node.Lat) {
			inRegion[node.ID] = struct{}{}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	log.Printf("indexed %d nodes inside %s", len(inRegion), e.options.CountryName)

	return inRegion, nil
}

// scanTerritory selects buildings with descriptive tags whose geometry
// touches the region node index.
func (e *Extractor) scanTerritory(ctx context.Context, path string, inRegion map[osm.NodeID]struct{}, batcher *Batcher, metrics *Metrics) error {
	scanner, closer, err := e.newScanner(ctx, path)
	if err != nil {
		return err
	}

	defer closer.Close()
	defer scanner.Close()

	scanner.SkipRelations = true

	bar := e.newBar("Extracting " + e.options.CountryName)

	for scanner.Scan() {
		if bar != nil {
			_ = bar.Add(1)
		}

		var id string

		var tags osm.Tags

		inside := false

		switch o := scanner.Object().(type) {
		case *osm.Node:
			id = "N" + strconv.FormatInt(int64(o.ID), 10)
			tags = o.Tags
			_, inside = inRegion[o.ID]
		case *osm.Way:
			metrics.Ways++
			id = "W" + strconv.FormatInt(int64(o.ID), 10)
			tags = o.Tags

			for _, wn := range o.Nodes {
				if _, ok := inRegion[wn.ID]; ok {
					inside = true

					break
				}
			}
		default:
			continue
		}

		if !inside || !selectBuilding(tags) {
			continue
		}

		metrics.Selected++

		if err := batcher.Add(id); err != nil {
			return fmt.Errorf("emitting batch: %w", err)
		}
	}

	return scanner.Err()
}

func (e *Extractor) inTerritory(lon, lat float64) bool {
	for _, box := range e.options.Exclude {
		if box.Contains(lon, lat) {
			return false
		}
	}

	for _, box := range e.options.Include {
		if box.Contains(lon, lat) {
			return true
		}
	}

	return false
}

// selectBuilding decides whether a tagged element is a geocodable
// building: it must be a building, carry something descriptive, and
// generic building values additionally need an identity tag.
func selectBuilding(tags osm.Tags) bool {
	building := tags.Find("building")
	if building == "" {
		return false
	}

	descriptive := false

	for _, tag := range descriptiveTags {
		if tags.Find(tag) != "" {
			descriptive = true

			break
		}
	}

	if !descriptive {
		return false
	}

	if genericBuildings[building] {
		for _, tag := range identityTags {
			if tags.Find(tag) != "" {
				return true
			}
		}

		return false
	}

	return true
}
