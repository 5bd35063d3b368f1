// Package fetch performs signed HTTPS transfers against S3-compatible
// object stores.
//
// Each transfer is a single-shot request with a bounded retry budget. Three
// read sinks are supported: a caller-supplied fixed buffer (range GET), a
// growable buffer (whole-object GET), and a local file (download). A file
// upload (PUT) completes the set. Headers, dates, and signatures are rebuilt
// from scratch on every attempt.
package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/groundstore/groundstore/internal/creds"
	gserr "github.com/groundstore/groundstore/internal/errors"
	"github.com/groundstore/groundstore/internal/metrics"
	"github.com/groundstore/groundstore/internal/sign"
)

// Tunable defaults. These mirror the service's production settings; override
// through Config.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 600 * time.Second
	DefaultLowSpeedLimit  = 32 * 1024 // bytes per second
	DefaultLowSpeedTime   = 5 * time.Second
	DefaultAttempts       = 3
	DefaultRetryWait      = 1 * time.Second
)

// maxLoggedBody caps how much of an error response body is logged.
const maxLoggedBody = 1024

// Config holds the transfer tunables for a Client.
type Config struct {
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the whole transfer.
	ReadTimeout time.Duration
	// LowSpeedLimit is the minimum transfer rate in bytes per second;
	// falling below it for LowSpeedTime aborts the attempt as a stall.
	LowSpeedLimit int64
	// LowSpeedTime is the window over which LowSpeedLimit is evaluated.
	LowSpeedTime time.Duration
	// Attempts is the total attempt budget per request.
	Attempts int
	// TLSVerify enables TLS peer and host verification. Off by policy in
	// production; the stores are reached over private links.
	TLSVerify bool
	// RetryWait is the pause before retrying a zero-byte transport failure.
	RetryWait time.Duration
}

// DefaultConfig returns the production transfer tunables.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		LowSpeedLimit:  DefaultLowSpeedLimit,
		LowSpeedTime:   DefaultLowSpeedTime,
		Attempts:       DefaultAttempts,
		TLSVerify:      false,
		RetryWait:      DefaultRetryWait,
	}
}

// Request identifies one object in one store. Endpoint, when non-empty,
// overrides the default https://s3.<region>.amazonaws.com base URL.
type Request struct {
	Region   string
	Bucket   string
	Key      string
	Endpoint string
	Cred     creds.Credential
}

// Client issues signed transfers with a shared HTTP transport.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a Client with the given tunables.
func NewClient(cfg Config) *Client {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.TLSVerify,
		},
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ReadTimeout,
		},
	}
}

// url builds the request URL. A leading '/' in the key has already been
// stripped by the caller.
func (c *Client) url(r Request, key string) string {
	base := r.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://s3.%s.amazonaws.com", r.Region)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(base, "/"), r.Bucket, key)
}

// trimKey strips a single leading path separator from the key before it is
// signed and placed in the URL.
func trimKey(key string) string {
	return strings.TrimPrefix(key, "/")
}

// ReadInto performs a range GET into the caller's buffer, reading
// len(buf) bytes starting at off. On success the return value is the number
// of bytes requested.
func (c *Client) ReadInto(ctx context.Context, r Request, buf []byte, off int64) (int64, error) {
	key := trimKey(r.Key)
	copied := int64(0)

	for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
		headers := sign.ReadHeaders(r.Bucket, key, r.Cred)
		start := off + copied
		end := off + int64(len(buf)) - 1
		headers.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

		n, status, err := c.attempt(ctx, http.MethodGet, r, key, headers, nil, 0, func(body io.Reader) (int64, error) {
			return c.copyWithWatchdog(fixedWriter{buf: buf, off: &copied}, body)
		})

		switch outcome := classify(n, status, err); outcome {
		case outcomeSuccess:
			metrics.FetchAttemptsTotal.WithLabelValues("fixed", "success").Inc()
			metrics.FetchBytesTotal.WithLabelValues("fixed").Add(float64(len(buf)))
			return int64(len(buf)), nil
		case outcomeHTTPError:
			metrics.FetchAttemptsTotal.WithLabelValues("fixed", "http_error").Inc()
			logHTTPError(status, buf[:copied], key)
			copied = 0
		case outcomePartial:
			metrics.FetchAttemptsTotal.WithLabelValues("fixed", "transport_error").Inc()
			slog.Error("transport error after partial response", "received", copied, "key", key, "err", err)
			return 0, gserr.Wrap(gserr.KindTransferFailed, err, "fixed request to %s/%s failed after partial response", r.Bucket, key)
		case outcomeRetryable:
			metrics.FetchAttemptsTotal.WithLabelValues("fixed", "transport_error").Inc()
			slog.Error("transport error, retrying", "key", key, "err", err)
			c.pause(ctx)
		}
	}

	return 0, gserr.New(gserr.KindTransferFailed, "fixed request to %s/%s failed", r.Bucket, key)
}

// ReadAll performs a GET of the whole object into a newly allocated buffer.
func (c *Client) ReadAll(ctx context.Context, r Request) ([]byte, error) {
	key := trimKey(r.Key)

	for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
		headers := sign.ReadHeaders(r.Bucket, key, r.Cred)

		var sink bytes.Buffer
		n, status, err := c.attempt(ctx, http.MethodGet, r, key, headers, nil, 0, func(body io.Reader) (int64, error) {
			return c.copyWithWatchdog(&sink, body)
		})

		switch outcome := classify(n, status, err); outcome {
		case outcomeSuccess:
			metrics.FetchAttemptsTotal.WithLabelValues("streaming", "success").Inc()
			metrics.FetchBytesTotal.WithLabelValues("streaming").Add(float64(sink.Len()))
			return sink.Bytes(), nil
		case outcomeHTTPError:
			metrics.FetchAttemptsTotal.WithLabelValues("streaming", "http_error").Inc()
			logHTTPError(status, sink.Bytes(), key)
		case outcomePartial:
			metrics.FetchAttemptsTotal.WithLabelValues("streaming", "transport_error").Inc()
			slog.Error("transport error after partial response", "received", n, "key", key, "err", err)
			return nil, gserr.Wrap(gserr.KindTransferFailed, err, "streaming request to %s/%s failed after partial response", r.Bucket, key)
		case outcomeRetryable:
			metrics.FetchAttemptsTotal.WithLabelValues("streaming", "transport_error").Inc()
			slog.Error("transport error, retrying", "key", key, "err", err)
			c.pause(ctx)
		}
	}

	return nil, gserr.New(gserr.KindTransferFailed, "streaming request to %s/%s failed", r.Bucket, key)
}

// Download performs a GET of the whole object straight into a newly created
// local file and returns the number of bytes written. The destination is
// recreated on each attempt and removed on final failure.
func (c *Client) Download(ctx context.Context, r Request, filename string) (int64, error) {
	key := trimKey(r.Key)

	for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
		headers := sign.ReadHeaders(r.Bucket, key, r.Cred)

		f, ferr := os.Create(filename)
		if ferr != nil {
			return 0, gserr.Wrap(gserr.KindLocalIO, ferr, "failed to open destination file %s for writing", filename)
		}

		n, status, err := c.attempt(ctx, http.MethodGet, r, key, headers, nil, 0, func(body io.Reader) (int64, error) {
			return c.copyWithWatchdog(f, body)
		})
		f.Close()

		switch outcome := classify(n, status, err); outcome {
		case outcomeSuccess:
			metrics.FetchAttemptsTotal.WithLabelValues("file", "success").Inc()
			metrics.FetchBytesTotal.WithLabelValues("file").Add(float64(n))
			return n, nil
		case outcomeHTTPError:
			metrics.FetchAttemptsTotal.WithLabelValues("file", "http_error").Inc()
			// The error body was written to the destination file.
			errBody, _ := os.ReadFile(filename)
			logHTTPError(status, errBody, key)
		case outcomePartial:
			metrics.FetchAttemptsTotal.WithLabelValues("file", "transport_error").Inc()
			slog.Error("transport error after partial response", "received", n, "key", key, "err", err)
			os.Remove(filename)
			return 0, gserr.Wrap(gserr.KindTransferFailed, err, "file request to %s/%s failed after partial response", r.Bucket, key)
		case outcomeRetryable:
			metrics.FetchAttemptsTotal.WithLabelValues("file", "transport_error").Inc()
			slog.Error("transport error, retrying", "key", key, "err", err)
			c.pause(ctx)
		}
	}

	os.Remove(filename)
	return 0, gserr.New(gserr.KindTransferFailed, "file request to %s/%s failed", r.Bucket, key)
}

// Upload performs a SigV2 PUT of a local file and returns the number of
// bytes sent.
func (c *Client) Upload(ctx context.Context, r Request, filename string) (int64, error) {
	key := trimKey(r.Key)

	f, ferr := os.Open(filename)
	if ferr != nil {
		return 0, gserr.Wrap(gserr.KindLocalIO, ferr, "failed to open source file %s for reading", filename)
	}
	defer f.Close()

	info, ferr := f.Stat()
	if ferr != nil {
		return 0, gserr.Wrap(gserr.KindLocalIO, ferr, "failed to stat source file %s", filename)
	}
	contentLength := info.Size()

	for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, gserr.Wrap(gserr.KindLocalIO, err, "failed to rewind source file %s", filename)
		}

		headers := sign.WriteHeaders(r.Bucket, key, r.Cred, contentLength)

		sent := &countingReader{r: f}
		_, status, err := c.attempt(ctx, http.MethodPut, r, key, headers, sent, contentLength, func(body io.Reader) (int64, error) {
			// Response bodies on PUT are error payloads only; drain and discard.
			_, derr := io.Copy(io.Discard, io.LimitReader(body, maxLoggedBody))
			return 0, derr
		})

		switch outcome := classify(sent.n, status, err); outcome {
		case outcomeSuccess:
			metrics.FetchAttemptsTotal.WithLabelValues("put", "success").Inc()
			metrics.FetchBytesTotal.WithLabelValues("put").Add(float64(contentLength))
			return contentLength, nil
		case outcomeHTTPError:
			metrics.FetchAttemptsTotal.WithLabelValues("put", "http_error").Inc()
			logHTTPError(status, nil, key)
		case outcomePartial:
			metrics.FetchAttemptsTotal.WithLabelValues("put", "transport_error").Inc()
			slog.Error("transport error after partial upload", "sent", sent.n, "key", key, "err", err)
			return 0, gserr.Wrap(gserr.KindTransferFailed, err, "put request to %s/%s failed after partial upload", r.Bucket, key)
		case outcomeRetryable:
			metrics.FetchAttemptsTotal.WithLabelValues("put", "transport_error").Inc()
			slog.Error("transport error, retrying", "key", key, "err", err)
			c.pause(ctx)
		}
	}

	return 0, gserr.New(gserr.KindTransferFailed, "put request to %s/%s failed", r.Bucket, key)
}

// attempt performs one HTTP exchange. For GETs the sink callback consumes a
// 2xx body; non-2xx bodies are consumed into the sink as well so they can be
// logged by the caller. The returned count is the number of payload bytes
// the sink received.
func (c *Client) attempt(ctx context.Context, method string, r Request, key string, headers http.Header, body io.Reader, contentLength int64, sinkFn func(io.Reader) (int64, error)) (int64, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(r, key), body)
	if err != nil {
		return 0, 0, err
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Set(name, v)
		}
	}
	if method == http.MethodPut {
		// Chunked transfer encoding is suppressed by declaring the length.
		req.ContentLength = contentLength
	}

	rsps, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer rsps.Body.Close()

	n, err := sinkFn(rsps.Body)
	return n, rsps.StatusCode, err
}

// outcome classifies a completed attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeHTTPError
	outcomePartial
	outcomeRetryable
)

// classify applies the retry policy: 2xx succeeds; any other HTTP status is
// a failed attempt that retries; a transport error after payload bytes have
// moved is unrecoverable; a zero-byte transport error retries.
func classify(received int64, status int, err error) outcome {
	if err == nil {
		if status < 300 {
			return outcomeSuccess
		}
		return outcomeHTTPError
	}
	if received > 0 {
		return outcomePartial
	}
	return outcomeRetryable
}

// pause sleeps the bounded retry interval, returning early on context
// cancellation.
func (c *Client) pause(ctx context.Context) {
	wait := c.cfg.RetryWait
	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// copyWithWatchdog copies the response body into dst while enforcing the
// low-speed floor: if fewer than LowSpeedLimit bytes per second arrive over
// a LowSpeedTime window, the attempt is aborted as a stall.
func (c *Client) copyWithWatchdog(dst io.Writer, src io.Reader) (int64, error) {
	var total int64
	buf := make([]byte, 64*1024)

	windowStart := time.Now()
	var windowBytes int64
	floor := c.cfg.LowSpeedLimit * int64(c.cfg.LowSpeedTime/time.Second)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			windowBytes += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}

		if floor > 0 && c.cfg.LowSpeedTime > 0 {
			if elapsed := time.Since(windowStart); elapsed >= c.cfg.LowSpeedTime {
				if windowBytes < floor {
					return total, fmt.Errorf("transfer stalled below %d bytes/s for %s", c.cfg.LowSpeedLimit, c.cfg.LowSpeedTime)
				}
				windowStart = time.Now()
				windowBytes = 0
			}
		}
	}
}

// fixedWriter copies into a preallocated buffer, discarding overflow the way
// a range response larger than the request window would otherwise corrupt
// adjacent memory.
type fixedWriter struct {
	buf []byte
	off *int64
}

func (w fixedWriter) Write(p []byte) (int, error) {
	available := int64(len(w.buf)) - *w.off
	n := int64(len(p))
	if n > available {
		n = available
	}
	copy(w.buf[*w.off:], p[:n])
	*w.off += n
	// Report full consumption so oversized bodies drain without error.
	return len(p), nil
}

// countingReader counts bytes handed to the transport during an upload.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// logHTTPError logs a non-2xx response with a printable-sanitized body.
func logHTTPError(status int, body []byte, key string) {
	if len(body) > 0 {
		slog.Info("error response body", "body", printify(body))
	}
	slog.Error("object store returned http error", "status", status, "key", key)
}

// printify replaces non-printable bytes with '.' and caps the result so
// binary error payloads are safe to log.
func printify(b []byte) string {
	if len(b) > maxLoggedBody {
		b = b[:maxLoggedBody]
	}
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 0x20 && c < 0x7f {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
