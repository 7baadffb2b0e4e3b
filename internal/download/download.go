// Copyright 2023 The MaxMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package download fetches files over HTTPS using sequential range requests
// sized to fit the user buffer.
package download

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/logger"
)

var (
	// ErrInvalidURL indicates that the URL is not a valid HTTPS URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnexpectedStatus indicates that the server replied with a status
	// code other than the expected ones.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrResponseTooLarge indicates that the response does not fit in the
	// user buffer.
	ErrResponseTooLarge = errors.New("response too large")

	// ErrInvalidContentRange indicates that the Content-Range of the response
	// does not match the requested range.
	ErrInvalidContentRange = errors.New("invalid content range")
)

// Downloader downloads files with range requests.
type Downloader struct {
	client    *resty.Client
	httpsPort uint16
	rangeLen  int
	bufLen    int
	log       *logger.Logger
}

// New creates a Downloader using the HTTPS port, the range request length,
// and the user buffer length of the surface. The tls.Config defines the
// trusted roots; nil means the system roots.
func New(s *config.Surface, tlsConf *tls.Config, timeout time.Duration,
	log *logger.Logger) *Downloader {

	client := resty.New().SetTimeout(timeout)
	if tlsConf != nil {
		client.SetTLSClientConfig(tlsConf)
	}

	return &Downloader{
		client:    client,
		httpsPort: s.HTTPSPort(),
		rangeLen:  s.RangeRequestLength(),
		bufLen:    s.UserBufferLength(),
		log:       log,
	}
}

// Download downloads the file at the URL into w, returning the number of
// bytes written.
func (d *Downloader) Download(ctx context.Context, rawURL string,
	w io.Writer) (int64, error) {

	u, err := d.resolveURL(rawURL)
	if err != nil {
		return 0, err
	}

	d.log.Info().Str("Host", u.Host).Str("Path", u.Path).
		Msg("Download Starting")

	var written int64
	total := int64(-1)

	for total < 0 || written < total {
		end := written + int64(d.rangeLen) - 1
		if total >= 0 && end > total-1 {
			end = total - 1
		}

		chunk, err := d.fetchRange(ctx, u.String(), written, end)
		if err != nil {
			return written, err
		}

		if chunk.total == 0 {
			break
		}

		n, err := w.Write(chunk.body)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write range: %w", err)
		}
		total = chunk.total
	}

	d.log.Info().Int64("Bytes", written).Msg("Download Completed")
	return written, nil
}

func (d *Downloader) resolveURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be https", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(),
			strconv.Itoa(int(d.httpsPort)))
	}
	return u, nil
}

type chunk struct {
	body  []byte
	total int64
}

func (d *Downloader) fetchRange(ctx context.Context, u string, start,
	end int64) (chunk, error) {

	rangeHdr := fmt.Sprintf("bytes=%d-%d", start, end)
	d.log.Debug().Str("Range", rangeHdr).Msg("Download Requesting range")

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Range", rangeHdr).
		SetDoNotParseResponse(true).
		Get(u)
	if err != nil {
		return chunk{}, fmt.Errorf("failed to request range %s: %w",
			rangeHdr, err)
	}
	raw := resp.RawBody()
	defer func() { _ = raw.Close() }()

	hdrLen := headerSize(resp)
	if hdrLen >= d.bufLen {
		return chunk{}, fmt.Errorf("%w: %d bytes of headers",
			ErrResponseTooLarge, hdrLen)
	}

	limit := int64(d.bufLen - hdrLen)
	body, err := io.ReadAll(io.LimitReader(raw, limit+1))
	if err != nil {
		return chunk{}, fmt.Errorf("failed to read range %s: %w", rangeHdr,
			err)
	}
	if int64(len(body)) > limit {
		return chunk{}, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge,
			d.bufLen)
	}

	switch resp.StatusCode() {
	case http.StatusPartialContent:
		first, last, total, err := parseContentRange(
			resp.Header().Get("Content-Range"))
		if err != nil {
			return chunk{}, err
		}
		if first != start || last > end || last-first+1 != int64(len(body)) {
			return chunk{}, fmt.Errorf("%w: got %d-%d for %s",
				ErrInvalidContentRange, first, last, rangeHdr)
		}
		return chunk{body: body, total: total}, nil

	case http.StatusOK:
		// The server ignored the range and sent the whole file.
		if start != 0 {
			return chunk{}, fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus,
				resp.StatusCode(), rangeHdr)
		}
		return chunk{body: body, total: int64(len(body))}, nil

	case http.StatusRequestedRangeNotSatisfiable:
		if start == 0 {
			return chunk{}, nil
		}
	}

	msg := strings.TrimSpace(string(bytes.ToValidUTF8(body, nil)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return chunk{}, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus,
		resp.StatusCode(), msg)
}

func headerSize(resp *resty.Response) int {
	// Status line and final CRLF.
	size := len(resp.Proto()) + 1 + len(resp.Status()) + 2 + 2

	for k, values := range resp.Header() {
		for _, v := range values {
			size += len(k) + 2 + len(v) + 2
		}
	}
	return size
}

// parseContentRange parses "bytes <first>-<last>/<total>".
func parseContentRange(v string) (first, last, total int64, err error) {
	invalid := fmt.Errorf("%w: %q", ErrInvalidContentRange, v)

	spec := strings.TrimPrefix(v, "bytes ")
	if spec == v {
		return 0, 0, 0, invalid
	}

	rng, size, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, 0, invalid
	}
	firstStr, lastStr, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, invalid
	}

	first, err = strconv.ParseInt(firstStr, 10, 64)
	if err != nil {
		return 0, 0, 0, invalid
	}
	last, err = strconv.ParseInt(lastStr, 10, 64)
	if err != nil {
		return 0, 0, 0, invalid
	}
	total, err = strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, 0, 0, invalid
	}

	if first < 0 || last < first || total <= last {
		return 0, 0, 0, invalid
	}
	return first, last, total, nil
}
