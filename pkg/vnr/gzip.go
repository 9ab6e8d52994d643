// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

// gzip ISIZE probe.
//
// From RFC 1952, the last eight bytes of a gzip member are:
//
//	+---+---+---+---+---+---+---+---+
//	|     CRC32     |     ISIZE     |
//	+---+---+---+---+---+---+---+---+
//
// ISIZE is the size of the uncompressed input modulo 2^32, little
// endian. Fetching just those four bytes with a Range request costs one
// extra round-trip but lets us show progress against the uncompressed
// size while streaming the extraction.

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os"
)

// fetchUncompressedSize asks the server for the ISIZE trailer of the
// gzip file at url, given its compressed length.
func fetchUncompressedSize(ctx context.Context, httpc *http.Client, cfg Settings, p *probe, url string, length int64) (int64, error) {
	if length < 4 {
		return 0, &UnexpectedContentLengthError{Got: length}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	addHeaders(req, cfg)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", length-4, length-1))

	resp, err := httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// A server that ignores Range replies 200 with the whole body. The
	// probe must not read that as a trailer.
	if resp.StatusCode == http.StatusOK {
		return 0, ErrRangeNotSupported
	}
	if resp.StatusCode != http.StatusPartialContent {
		return 0, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url}
	}
	if resp.ContentLength != 4 {
		return 0, &UnexpectedContentLengthError{Got: resp.ContentLength}
	}

	var buf [4]byte
	if _, err := io.ReadFull(resp.Body, buf[:]); err != nil {
		return 0, err
	}
	size := int64(binary.LittleEndian.Uint32(buf[:]))
	p.event(TraceEvent{Event: "size_probe", Total: size, Status: resp.StatusCode})
	return size, nil
}

// loadISize reads the ISIZE trailer from a gzip file already on disk.
// Used after the download when the remote probe failed.
func loadISize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Size() < 4 {
		return 0, &UnexpectedContentLengthError{Got: fi.Size()}
	}

	var buf [4]byte
	if _, err := f.ReadAt(buf[:], fi.Size()-4); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint32(buf[:])), nil
}
