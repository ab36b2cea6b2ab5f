// Package download transfers resolved media to local storage.
package download

import (
	"context"
	"errors"
	"os"
)

var (
	ErrTransferFailed = errors.New("transfer failed")
)

const DefaultDirPermissions = 0775

// An Item is one resolved media file: where to fetch it from, and the name to save it under.
type Item struct {
	URL      string
	Filename string
}

func (i Item) String() string {
	return i.Filename + " <- " + i.URL
}

// A Transferer saves an Item into a directory, creating the directory if needed.
type Transferer interface {
	Transfer(ctx context.Context, item Item, dir string) error
}

func ensureDir(dir string) error {
	if len(dir) == 0 {
		return nil
	}
	return os.MkdirAll(dir, DefaultDirPermissions)
}
