// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import "github.com/cartobase/addrharvest/store"

// DefaultBatchSize is how many element ids one batch carries.
const DefaultBatchSize = 100

// Batcher groups element ids into fixed-size batches and hands each full
// batch to the sink. Call Flush at the end of the pass for the remainder.
type Batcher struct {
	sink        Sink
	size        int
	countryCode string
	countryName string

	buf     []string
	emitted int
}

// NewBatcher creates a Batcher for one country.
func NewBatcher(sink Sink, size int, countryCode, countryName string) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}

	return &Batcher{
		sink:        sink,
		size:        size,
		countryCode: countryCode,
		countryName: countryName,
		buf:         make([]string, 0, size),
	}
}

// Add appends an id, emitting a batch when full.
func (b *Batcher) Add(id string) error {
	b.buf = append(b.buf, id)

	if len(b.buf) >= b.size {
		return b.Flush()
	}

	return nil
}

// Flush emits the buffered ids as a batch, if any.
func (b *Batcher) Flush() error {
	if len(b.buf) == 0 {
		return nil
	}

	batch := &store.Batch{
		CountryCode: b.countryCode,
		CountryName: b.countryName,
		OSMIDs:      b.buf,
		Status:      store.BatchOrigin,
	}

	if err := b.sink.Save(batch); err != nil {
		return err
	}

	b.emitted++
	b.buf = make([]string, 0, b.size)

	return nil
}

// Emitted returns how many batches have been saved.
func (b *Batcher) Emitted() int {
	return b.emitted
}
