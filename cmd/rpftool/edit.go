package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/rpfkit/pkg/rpf3"
)

// splitParent splits an archive path into its parent directory path and
// the last element.
func splitParent(path string) (string, string) {
	p := strings.Trim(strings.ReplaceAll(path, "/", `\`), `\`)
	if i := strings.LastIndexByte(p, '\\'); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

func (c *cli) findDir(a *rpf3.Archive, path string) (*rpf3.DirectoryEntry, error) {
	if strings.Trim(path, `\/`) == "" {
		return a.Root, nil
	}
	e, err := findEntry(a, path)
	if err != nil {
		return nil, err
	}
	d, ok := e.(*rpf3.DirectoryEntry)
	if !ok {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	return d, nil
}

func (c *cli) cmdMkdir(args []string) error {
	fs := c.flagSet("mkdir")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usage("mkdir <file.rpf> <path>")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	parentPath, name := splitParent(fs.Arg(1))
	parent, err := c.findDir(archive, parentPath)
	if err != nil {
		return err
	}

	dir, err := owner(archive, parent).CreateDirectory(parent, name)
	if err != nil {
		return err
	}
	c.log.Info("directory created", zap.String("path", dir.Path))
	fmt.Fprintf(c.out, "Created: %s\n", dir.Path)
	return nil
}

func (c *cli) cmdAdd(args []string) error {
	fs := c.flagSet("add")
	force := fs.Bool("f", false, "Overwrite existing files")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return usage("add [-f] <file.rpf> <dir> <file>...")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	dir, err := c.findDir(archive, fs.Arg(1))
	if err != nil {
		return err
	}
	target := owner(archive, dir)

	for _, local := range fs.Args()[2:] {
		data, err := os.ReadFile(local)
		if err != nil {
			return err
		}
		f, err := target.CreateFile(dir, filepath.Base(local), data, *force)
		if err != nil {
			return fmt.Errorf("adding %s: %w", local, err)
		}
		c.log.Info("file added",
			zap.String("path", f.Path),
			zap.Int("size", len(data)),
			zap.Int64("offset", f.DataOffset()))
		fmt.Fprintf(c.out, "Added: %s (%d bytes)\n", f.Path, len(data))
	}
	return nil
}

func (c *cli) cmdRemove(args []string) error {
	fs := c.flagSet("rm")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usage("rm <file.rpf> <path>")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	e, err := findEntry(archive, fs.Arg(1))
	if err != nil {
		return err
	}
	path := e.Info().Path
	if err := owner(archive, e).DeleteEntry(e); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted: %s\n", path)
	return nil
}

func (c *cli) cmdMove(args []string) error {
	fs := c.flagSet("mv")
	renameArchive := fs.Bool("archive", false, "Rename the archive file itself: mv -archive <file.rpf> <new name>")
	if err := c.parse(fs, args); err != nil {
		return err
	}

	if *renameArchive {
		if fs.NArg() < 2 {
			return usage("mv -archive <file.rpf> <new name>")
		}
		archive, err := c.open(fs.Arg(0))
		if err != nil {
			return err
		}
		newName := filepath.Base(fs.Arg(1))
		newPath := filepath.Join(filepath.Dir(archive.FilePath), newName)
		if _, err := os.Stat(newPath); err == nil {
			return fmt.Errorf("%w: %s", rpf3.ErrEntryExists, newPath)
		}
		if err := os.Rename(archive.FilePath, newPath); err != nil {
			return err
		}
		archive.RenameArchive(newName)
		fmt.Fprintf(c.out, "Renamed: %s\n", archive.FilePath)
		return nil
	}

	if fs.NArg() < 3 {
		return usage("mv <file.rpf> <path> <new name>")
	}
	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	e, err := findEntry(archive, fs.Arg(1))
	if err != nil {
		return err
	}
	if err := owner(archive, e).RenameEntry(e, fs.Arg(2)); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Renamed: %s\n", e.Info().Path)
	return nil
}

func (c *cli) cmdNew(args []string) error {
	fs := c.flagSet("new")
	encrypted := fs.Bool("encrypted", false, "Encrypt the table of contents")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage("new [-encrypted] <file.rpf>")
	}

	archive, err := rpf3.CreateNew(fs.Arg(0), rpf3.WithNames(c.names))
	if err != nil {
		return err
	}
	if *encrypted {
		archive.SetEncrypted(true)
		f, err := os.OpenFile(archive.FilePath, os.O_RDWR, 0)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := archive.WriteHeader(f); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "Created: %s\n", archive.FilePath)
	return nil
}
