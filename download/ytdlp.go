package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

const DefaultYtDlpPath = "yt-dlp"

// YtDlpTransferer delegates the transfer of adaptive-stream manifests to yt-dlp, which fetches and joins the segments.
// The file extension is chosen by yt-dlp.
type YtDlpTransferer struct {
	// Path to the yt-dlp executable.
	Path string
	// Netscape cookie file passed to yt-dlp, since it makes its own requests.
	CookiesFile string
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewYtDlpTransferer(path string, cookiesFile string) *YtDlpTransferer {
	if path == "" {
		path = DefaultYtDlpPath
	}
	return &YtDlpTransferer{
		Path:        path,
		CookiesFile: cookiesFile,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Args returns the yt-dlp command line arguments for transferring item into dir.
func (t *YtDlpTransferer) Args(item Item, dir string) []string {
	var args []string
	if t.CookiesFile != "" {
		args = append(args, "--cookies", t.CookiesFile)
	}
	return append(args,
		"--no-warnings",
		"--output", filepath.Join(dir, item.Filename+".%(ext)s"),
		item.URL,
	)
}

func (t *YtDlpTransferer) Transfer(ctx context.Context, item Item, dir string) error {
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransferFailed, item.Filename, err)
	}
	cmd := exec.CommandContext(ctx, t.Path, t.Args(item, dir)...)
	cmd.Stdout = t.Stdout
	cmd.Stderr = t.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %s: %v", ErrTransferFailed, item.Filename, t.Path, err)
	}
	return nil
}
