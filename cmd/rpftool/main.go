// rpftool is a CLI utility for working with RPF3 archives and the RSC5
// resources stored in them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/rpfkit/internal/config"
	"github.com/Faultbox/rpfkit/internal/logger"
	"github.com/Faultbox/rpfkit/pkg/encoding"
	"github.com/Faultbox/rpfkit/pkg/jenk"
	"github.com/Faultbox/rpfkit/pkg/rpf3"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	c := &cli{out: os.Stdout, errOut: os.Stderr}
	err := c.run(os.Args[1], os.Args[2:])
	logger.Sync()

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func usage(line string) error {
	return fmt.Errorf("%w: rpftool %s", errUsage, line)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `rpftool - RPF3 archive utility

Usage:
  rpftool <command> [options]

Commands:
  info <file.rpf>                       Show archive information
  list <file.rpf> [pattern]             List files, nested archives included
  extract <file.rpf> <path> [output]    Extract file(s) to directory
  search <file.rpf> <pattern>           Search files by path
  tree <file.rpf>                       Print the directory tree
  textures <file.rpf> [pattern]         Export textures of resources as PNG or BMP
  mkdir <file.rpf> <path>               Create a directory
  add <file.rpf> <dir> <file>...        Add local files to a directory
  rm <file.rpf> <path>                  Delete a file or directory
  mv <file.rpf> <path> <new name>       Rename an entry (-archive renames the file)
  new <file.rpf>                        Create an empty archive
  cache                                 Build the startup cache for the configured archives
  config [-o file]                      Save the effective configuration

Common options:
  -config <file>     Config file (default: ./rpftool.yaml)
  -strings <file>    Strings file used to name hashed entries
  -debug             Debug logging

Examples:
  rpftool info game.rpf
  rpftool list -strings strings.txt game.rpf "*.xtd"
  rpftool extract game.rpf "*.xshp" ./output
  rpftool textures -format bmp -out tex game.rpf vehicles
  rpftool add game.rpf sc ./0x1A2B3C4D.xshp`)
}

// cli carries the output streams and the settings of the running command.
type cli struct {
	out    io.Writer
	errOut io.Writer

	flags *config.Flags
	cfg   *config.Config
	names *jenk.Index
	log   *zap.Logger
}

func (c *cli) run(command string, args []string) error {
	switch command {
	case "info":
		return c.cmdInfo(args)
	case "list", "ls":
		return c.cmdList(args)
	case "extract", "x":
		return c.cmdExtract(args)
	case "search", "find":
		return c.cmdSearch(args)
	case "tree":
		return c.cmdTree(args)
	case "textures", "tex":
		return c.cmdTextures(args)
	case "mkdir":
		return c.cmdMkdir(args)
	case "add":
		return c.cmdAdd(args)
	case "rm", "del":
		return c.cmdRemove(args)
	case "mv", "rename":
		return c.cmdMove(args)
	case "new":
		return c.cmdNew(args)
	case "cache":
		return c.cmdCache(args)
	case "config":
		return c.cmdConfig(args)
	case "help", "-h", "--help":
		printUsage(c.out)
		return nil
	default:
		printUsage(c.errOut)
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// flagSet returns a flag set for one subcommand with the shared flags
// bound.
func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	c.flags = config.BindFlags(fs)
	return fs
}

// parse parses args, then loads the config, the logger and the strings
// file.
func (c *cli) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(c.flags)
	if err != nil {
		return err
	}
	c.cfg = cfg

	err = logger.InitWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		File:    fileConfig(cfg.Logging.LogFile),
		Console: true,
		JSON:    cfg.Logging.JSON,
		Output:  c.errOut,
	})
	if err != nil {
		return err
	}
	c.log = logger.Named("rpftool")

	c.names = jenk.NewIndex()
	if cfg.Data.StringsFile != "" {
		n, err := c.names.LoadFile(cfg.Data.StringsFile)
		if err != nil {
			c.log.Warn("strings file not loaded", zap.Error(err))
		} else {
			c.log.Debug("strings loaded", zap.Int("count", n))
		}
	}
	return nil
}

func fileConfig(path string) logger.FileConfig {
	if path == "" {
		return logger.FileConfig{}
	}
	return logger.DefaultFileConfig(path)
}

func (c *cli) open(path string) (*rpf3.Archive, error) {
	return rpf3.Open(path,
		rpf3.WithNames(c.names),
		rpf3.WithWindowBits(c.cfg.Decode.WindowBits))
}

// allFiles returns every file of a and its nested archives.
func allFiles(a *rpf3.Archive) []*rpf3.FileEntry {
	var out []*rpf3.FileEntry
	_ = a.Walk(func(cur *rpf3.Archive) error {
		out = append(out, cur.Files()...)
		return nil
	})
	return out
}

// findEntry resolves path against a and its nested archives. The path may
// include the archive name or start below the root.
func findEntry(a *rpf3.Archive, path string) (rpf3.Entry, error) {
	p := strings.Trim(encoding.NormalizePath(path), `\`)
	if !strings.HasPrefix(p, a.Path+`\`) && p != a.Path {
		p = a.Path + `\` + p
	}

	var found rpf3.Entry
	_ = a.Walk(func(cur *rpf3.Archive) error {
		if found != nil || (p != cur.Path && !strings.HasPrefix(p, cur.Path+`\`)) {
			return nil
		}
		if e, err := cur.Find(p); err == nil {
			found = e
		}
		return nil
	})
	if found == nil {
		return nil, fmt.Errorf("%w: %s", rpf3.ErrNotFound, path)
	}
	return found, nil
}

// owner returns the archive that stores e.
func owner(a *rpf3.Archive, e rpf3.Entry) *rpf3.Archive {
	if o := e.Info().Archive; o != nil {
		return o
	}
	return a
}

func (c *cli) cmdConfig(args []string) error {
	fs := c.flagSet("config")
	out := fs.String("o", "", "Output file (default: user config directory)")
	if err := c.parse(fs, args); err != nil {
		return err
	}

	path := *out
	var err error
	if path == "" {
		path, err = c.cfg.Save()
	} else {
		err = c.cfg.SaveTo(path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Saved: %s\n", path)
	return nil
}
