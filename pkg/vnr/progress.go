// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"io"
	"time"
)

// progressReader wraps an io.Reader and emits read_progress events
// during reads. For tarball fetches it sits downstream of the gzip
// decoder, so progress is measured in uncompressed bytes against the
// ISIZE estimate.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	emit       func(TraceEvent)
	lastEmit   time.Time
	interval   time.Duration
}

func newProgressReader(r io.Reader, total int64, emit func(TraceEvent)) *progressReader {
	return &progressReader{
		reader:   r,
		total:    total,
		emit:     emit,
		lastEmit: time.Now(),
		interval: 200 * time.Millisecond, // Emit at most 5 times per second
	}
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		// Throttle emissions to avoid flooding
		if time.Since(pr.lastEmit) >= pr.interval || err == io.EOF {
			pr.emit(TraceEvent{
				Event:      "read_progress",
				Downloaded: pr.downloaded,
				Total:      pr.total,
			})
			pr.lastEmit = time.Now()
		}
	}
	return n, err
}
