package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/rpfkit/internal/assets"
	"github.com/Faultbox/rpfkit/pkg/rpf3"
	"github.com/Faultbox/rpfkit/pkg/rsc5"
)

// encodeImage writes img in the configured export format.
func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "bmp":
		return bmp.Encode(w, img)
	case "png":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// exportTexture writes t below dir and returns the file written.
func exportTexture(dir string, t *rsc5.Texture, format string) (string, error) {
	img, err := t.Image()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	name := strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(t.Name)
	path := filepath.Join(dir, name+"."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := encodeImage(f, img, format); err != nil {
		f.Close()
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	return path, f.Close()
}

// exportDir returns the directory receiving the textures of f. It mirrors
// the entry path, so entries sharing a name in different directories or
// with different extensions never write to the same place.
func exportDir(outDir string, f *rpf3.FileEntry) string {
	rel := strings.Trim(strings.ReplaceAll(f.Path, `\`, "/"), "/")
	if rel == "" {
		rel = f.Name
	}
	rel = strings.NewReplacer(":", "_", "..", "_").Replace(rel)
	return filepath.Join(outDir, filepath.FromSlash(rel))
}

func (c *cli) workers() int {
	if c.cfg.Decode.Workers > 0 {
		return c.cfg.Decode.Workers
	}
	return runtime.NumCPU()
}

func (c *cli) cmdTextures(args []string) error {
	fs := c.flagSet("textures")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage("textures [-format png|bmp] [-out dir] <file.rpf> [pattern]")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	pattern := fs.Arg(1)
	format := c.cfg.Export.ImageFormat
	outDir := c.cfg.Export.OutputDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())

	var resources, exported, failed atomic.Int64
	for _, f := range allFiles(archive) {
		if !f.IsResource || !matches(f, pattern) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			file, err := rsc5.LoadEntry(f.Archive, f)
			if errors.Is(err, rsc5.ErrUnsupported) {
				return nil
			}
			if err != nil {
				c.log.Warn("resource not decoded", zap.String("path", f.Path), zap.Error(err))
				failed.Add(1)
				return nil
			}
			resources.Add(1)
			for _, w := range file.Warnings() {
				c.log.Debug("decode warning", zap.String("path", f.Path), zap.Error(w))
			}

			dir := exportDir(outDir, f)
			for _, t := range file.Textures() {
				if !t.HasData() {
					continue
				}
				path, err := exportTexture(dir, t, format)
				if err != nil {
					c.log.Warn("texture not exported", zap.String("texture", t.Name), zap.Error(err))
					failed.Add(1)
					continue
				}
				c.log.Debug("texture exported", zap.String("path", path), zap.Stringer("texture", t))
				exported.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Decoded %d resources, exported %d textures to %s", resources.Load(), exported.Load(), outDir)
	if n := failed.Load(); n > 0 {
		fmt.Fprintf(c.out, " (%d failures)", n)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *cli) cmdCache(args []string) error {
	fs := c.flagSet("cache")
	if err := c.parse(fs, args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := assets.NewManager(c.cfg)
	defer m.Close()
	if err := m.Init(ctx); err != nil {
		return err
	}
	// Init only rebuilds a stale cache; the command always rebuilds.
	if err := m.SaveStartupCache(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Archives: %d (%d nested)\n", len(m.Archives()), len(m.AllArchives())-len(m.Archives()))
	fmt.Fprintf(c.out, "Files:    %d\n", m.EntryCount())
	fmt.Fprintf(c.out, "Textures: %d\n", len(m.Textures()))
	fmt.Fprintf(c.out, "Cache:    %s\n", filepath.Join(c.cfg.Data.CacheDir, assets.StartupFile))
	return nil
}
