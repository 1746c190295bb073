// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"ccos/internal/apierr"
	"ccos/internal/retry"
	"ccos/internal/tracing"
)

// SaveFile writes an artifact through a temp file next to dest, checks that at
// least minBytes were written and renames it into place. A short file is
// removed and reported as ccos-error-artifact-too-small.
func SaveFile(dest string, minBytes int64, write func(w io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return 0, apierr.IO("could not create artifact directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, apierr.IO("could not create temp file", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	n, err := write(tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = apierr.IO("could not write artifact", tmpName, closeErr)
	}
	if err != nil {
		cleanup()
		return n, err
	}
	if n < minBytes {
		cleanup()
		return n, apierr.ArtifactTooSmall(dest, n, minBytes)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return n, apierr.IO("could not move artifact into place", dest, err)
	}
	return n, nil
}

// SaveBytes is SaveFile for an in-memory artifact.
func SaveBytes(dest string, minBytes int64, data []byte) (int64, error) {
	return SaveFile(dest, minBytes, func(w io.Writer) (int64, error) {
		return io.Copy(w, bytes.NewReader(data))
	})
}

// Download streams url into dest under the client's retry policy and returns
// the number of bytes written. Each attempt starts a fresh temp file.
func (c *Client) Download(ctx context.Context, url string, dest string, minBytes int64, header http.Header) (int64, error) {
	var written int64
	policy := c.Policy
	policy.Notify = c.notify(http.MethodGet, url)
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		written, err = SaveFile(dest, minBytes, func(w io.Writer) (int64, error) {
			return c.copyOnce(ctx, url, header, w)
		})
		return err
	})
	if err == nil {
		c.Logger.Info("Downloaded artifact", "path", dest, "bytes", written)
	}
	return written, err
}

// Stream GETs url and copies the body into w. Opening the response is
// retried; once bytes have reached w a failure is returned as is.
func (c *Client) Stream(ctx context.Context, url string, header http.Header, w io.Writer) (int64, error) {
	var body io.ReadCloser
	policy := c.Policy
	policy.Notify = c.notify(http.MethodGet, url)
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		body, err = c.open(ctx, url, header)
		return err
	})
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return copyBody(w, body)
}

func (c *Client) copyOnce(ctx context.Context, url string, header http.Header, w io.Writer) (int64, error) {
	body, err := c.open(ctx, url, header)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return copyBody(w, body)
}

func copyBody(w io.Writer, body io.Reader) (int64, error) {
	n, err := io.Copy(w, body)
	if err != nil {
		return n, apierr.Transport(err)
	}
	return n, nil
}

// open sends a GET and returns the body of a 2xx response. Other statuses
// become ccos-error-http-status.
func (c *Client) open(ctx context.Context, url string, header http.Header) (io.ReadCloser, error) {
	req, err := Request{Method: http.MethodGet, URL: url, Header: header}.build(ctx, url, nil, "")
	if err != nil {
		return nil, retry.Stop(err)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}

	ctx, span := tracing.Start(ctx, "download "+req.URL.Host)
	defer func() { tracing.End(span, err) }()

	resp, err := c.HTTP.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
			return nil, err
		}
		err = apierr.Transport(err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLogBody))
		resp.Body.Close()
		c.logStatus(req, resp.StatusCode, body)
		err = apierr.HTTPStatus(resp.StatusCode, body)
		return nil, err
	}
	return resp.Body, nil
}
