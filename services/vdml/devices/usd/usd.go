// Package usd is the SD card slot, backed by a directory on the host.
package usd

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"smartport-go/errcode"
	"smartport-go/types"
)

// MountPrefix is stripped from paths so "/usd/logs" and "logs" name the
// same directory.
const MountPrefix = "/usd"

type Card struct {
	root string
}

// New mounts root. An empty root means no card is inserted.
func New(root string) *Card { return &Card{root: root} }

// IsInstalled returns 1 when a card is present, 0 otherwise.
func (c *Card) IsInstalled() int32 {
	if c.root == "" {
		return 0
	}
	st, err := os.Stat(c.root)
	if err != nil || !st.IsDir() {
		return 0
	}
	return 1
}

// ListFiles writes the names under path into buf, one per line, and returns
// types.Success. Directories are not marked. Paths cannot leave the card.
func (c *Card) ListFiles(path string, buf []byte) (int32, error) {
	if c.IsInstalled() == 0 {
		return types.ErrInt, errcode.New(errcode.NotInstalled, "usd list", "no card")
	}
	root, err := os.OpenRoot(c.root)
	if err != nil {
		return types.ErrInt, errcode.Wrap(errcode.NotInstalled, "usd list", -1, err)
	}
	defer root.Close()

	entries, err := fs.ReadDir(root.FS(), clean(path))
	if err != nil {
		code := errcode.Error
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			code = errcode.InvalidParams
		}
		return types.ErrInt, errcode.Wrap(code, "usd list", -1, err)
	}

	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Name())
	}
	// leave room for a terminating NUL, as callers treat buf as a C string
	if sb.Len()+1 > len(buf) {
		return types.ErrInt, errcode.New(errcode.BufferTooSmall, "usd list", "need "+strconv.Itoa(sb.Len()+1)+" bytes")
	}
	n := copy(buf, sb.String())
	buf[n] = 0
	return types.Success, nil
}

func clean(p string) string {
	if p == MountPrefix || strings.HasPrefix(p, MountPrefix+"/") {
		p = p[len(MountPrefix):]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	return p
}
