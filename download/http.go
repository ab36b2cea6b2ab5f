package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/alanbriolat/lecture-archiver/internal/api"
)

const partialSuffix = ".part"

// A Requester builds and executes authenticated requests.
type Requester interface {
	NewRequest(ctx context.Context, rawURL string) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

type ProgressCallback = func(downloaded int, expected int)

// HTTPTransferer streams a file with a single GET request, writing to a ".part" file that is renamed once complete.
type HTTPTransferer struct {
	requester Requester
	progress  func(item Item) ProgressCallback
}

type HTTPOption func(*HTTPTransferer)

// WithProgressCallback sets a function called at the start of each transfer, returning the callback that receives
// byte counts for that transfer.
func WithProgressCallback(f func(item Item) ProgressCallback) HTTPOption {
	return func(t *HTTPTransferer) {
		t.progress = f
	}
}

func NewHTTPTransferer(requester Requester, opts ...HTTPOption) *HTTPTransferer {
	t := &HTTPTransferer{requester: requester}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransferer) Transfer(ctx context.Context, item Item, dir string) error {
	if err := t.transfer(ctx, item, dir); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, item.Filename, err)
	}
	return nil
}

func (t *HTTPTransferer) transfer(ctx context.Context, item Item, dir string) error {
	req, err := t.requester.NewRequest(ctx, item.URL)
	if err != nil {
		return err
	}
	resp, err := t.requester.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if err := api.CheckStatus(resp); errors.Is(err, api.ErrAuth) {
		return fmt.Errorf("download failed: %w", err)
	} else if err != nil {
		// Any other status only fails this file.
		return fmt.Errorf("download failed: HTTP %s", resp.Status)
	}

	if err := ensureDir(dir); err != nil {
		return err
	}
	target := filepath.Join(dir, item.Filename)
	partial := target + partialSuffix

	p := &progress{}
	if t.progress != nil {
		p.callback = t.progress(item)
	}
	if resp.ContentLength > 0 {
		p.AddExpectedBytes(int(resp.ContentLength))
	}

	if err := saveStream(partial, &readerContext{ctx: ctx, r: resp.Body}, p); err != nil {
		_ = os.Remove(partial)
		return err
	}
	return os.Rename(partial, target)
}

func saveStream(path string, stream io.Reader, p *progress) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	// Progress is the last writer so failed writes are not counted.
	if _, err := io.Copy(io.MultiWriter(f, p), stream); err != nil {
		f.Close()
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return f.Close()
}

type progress struct {
	callback        ProgressCallback
	expectedBytes   int
	downloadedBytes int
}

func (p *progress) AddDownloadedBytes(n int) {
	p.downloadedBytes += n
	if p.callback != nil {
		p.callback(p.downloadedBytes, p.expectedBytes)
	}
}

func (p *progress) AddExpectedBytes(n int) {
	p.expectedBytes += n
	if p.callback != nil {
		p.callback(p.downloadedBytes, p.expectedBytes)
	}
}

// Write discards the data but counts the bytes as downloaded.
func (p *progress) Write(b []byte) (n int, err error) {
	n = len(b)
	p.AddDownloadedBytes(n)
	return n, nil
}

// A context-aware io.Reader wrapper.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
