package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

// DirectoryInfo probes the active output directory. The probe is bounded by
// the configured timeout; any failure degrades to a negative-but-valid
// result rather than raising.
func (p *Provider) DirectoryInfo(ctx context.Context) types.DirectoryInfo {
	dir := p.CurrentQRDirectory()

	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	done := make(chan types.DirectoryInfo, 1)
	go func() {
		done <- probeDirectory(dir)
	}()

	select {
	case info := <-done:
		return info
	case <-ctx.Done():
		p.log.Warn("directory probe timed out", zap.String("directory", dir))
		return types.DirectoryInfo{Path: dir}
	}
}

func probeDirectory(dir string) types.DirectoryInfo {
	info := types.DirectoryInfo{Path: dir}

	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return info
	}
	info.Exists = true
	info.LastModified = stat.ModTime()
	info.Writable = probeWritable(dir)

	conf := fastwalk.Config{Follow: false}
	_ = fastwalk.Walk(&conf, dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !isQRImage(path) {
			return nil
		}
		if fi, statErr := d.Info(); statErr == nil {
			info.QRFileCount++
			info.TotalSize += fi.Size()
		}
		return nil
	})

	return info
}

// probeWritable checks writability by creating and removing a probe file.
// Permission bits alone lie on network mounts and read-only remounts.
func probeWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".qrdir-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// isQRImage reports whether a file looks like rendered QR output. Known
// image extensions are accepted directly; extensionless files are sniffed.
func isQRImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".svg":
		return true
	case "":
		mtype, err := mimetype.DetectFile(path)
		return err == nil && strings.HasPrefix(mtype.String(), "image/")
	}
	return false
}
