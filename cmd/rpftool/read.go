package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/rpfkit/pkg/rpf3"
)

func (c *cli) cmdInfo(args []string) error {
	fs := c.flagSet("info")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage("info <file.rpf>")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}

	files := allFiles(archive)
	nested := 0
	_ = archive.Walk(func(*rpf3.Archive) error { nested++; return nil })

	// Count by extension
	extCount := make(map[string]int)
	var totalSize int64
	resources := 0
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext == "" {
			ext = "(no ext)"
		}
		extCount[ext]++
		totalSize += f.FileSize()
		if f.IsResource {
			resources++
		}
	}

	fmt.Fprintf(c.out, "Archive:   %s\n", fs.Arg(0))
	fmt.Fprintf(c.out, "Entries:   %d\n", archive.EntryCount)
	fmt.Fprintf(c.out, "Encrypted: %v\n", archive.Encrypted())
	fmt.Fprintf(c.out, "Nested:    %d\n", nested-1)
	fmt.Fprintf(c.out, "Files:     %d (%d resources)\n", len(files), resources)
	fmt.Fprintf(c.out, "Size:      %.2f MB\n", float64(totalSize)/(1024*1024))
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Files by type:")

	// Sort by count
	type extStat struct {
		ext   string
		count int
	}
	var stats []extStat
	for ext, count := range extCount {
		stats = append(stats, extStat{ext, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].ext < stats[j].ext
	})

	for _, s := range stats {
		fmt.Fprintf(c.out, "  %-10s %d\n", s.ext, s.count)
	}
	return nil
}

// matches reports whether f matches a glob on its name or a substring of
// its path. An empty pattern matches everything.
func matches(f *rpf3.FileEntry, pattern string) bool {
	if pattern == "" {
		return true
	}
	pattern = strings.ToLower(pattern)
	if ok, _ := filepath.Match(pattern, f.NameLower()); ok {
		return true
	}
	return !strings.ContainsAny(pattern, "*?[") && strings.Contains(f.Path, pattern)
}

func kind(f *rpf3.FileEntry) string {
	switch {
	case f.IsResource:
		return fmt.Sprintf("rsc:%d", f.ResourceType())
	case f.IsCompressed:
		return "deflate"
	default:
		return "raw"
	}
}

func (c *cli) cmdList(args []string) error {
	fs := c.flagSet("list")
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	long := fs.Bool("l", false, "Show size and storage kind")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage("list <file.rpf> [pattern]")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}

	files := allFiles(archive)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	pattern := fs.Arg(1)
	count := 0
	for _, f := range files {
		if !matches(f, pattern) {
			continue
		}
		if *long {
			fmt.Fprintf(c.out, "%10d  %-8s %s\n", f.FileSize(), kind(f), f.Path)
		} else {
			fmt.Fprintln(c.out, f.Path)
		}
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(c.errOut, "\n(%d files matched)\n", count)
	}
	return nil
}

func (c *cli) cmdExtract(args []string) error {
	fs := c.flagSet("extract")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usage("extract <file.rpf> <path> [output_dir]")
	}

	filePath := fs.Arg(1)
	outputDir := c.cfg.Export.OutputDir
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}

	// Check if it's a pattern
	if strings.ContainsAny(filePath, "*?[") {
		return c.extractPattern(archive, filePath, outputDir)
	}

	e, err := findEntry(archive, filePath)
	if err != nil {
		return err
	}
	f, ok := e.(*rpf3.FileEntry)
	if !ok {
		return fmt.Errorf("%s is a directory", filePath)
	}

	data, err := archive.ExtractFile(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.Path, err)
	}

	outputPath := filepath.Join(outputDir, f.Name)
	if err := writeOutput(outputPath, data); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Extracted: %s (%d bytes)\n", outputPath, len(data))
	return nil
}

func (c *cli) extractPattern(archive *rpf3.Archive, pattern, outputDir string) error {
	extracted := 0
	for _, f := range allFiles(archive) {
		if !matches(f, pattern) {
			continue
		}

		data, err := archive.ExtractFile(f)
		if err != nil {
			fmt.Fprintf(c.errOut, "Error reading %s: %v\n", f.Path, err)
			continue
		}

		// Preserve directory structure
		outputPath := filepath.Join(outputDir, filepath.FromSlash(strings.ReplaceAll(f.Path, `\`, "/")))
		if err := writeOutput(outputPath, data); err != nil {
			fmt.Fprintf(c.errOut, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Fprintf(c.out, "Extracted: %s\n", outputPath)
		extracted++
	}

	fmt.Fprintf(c.errOut, "\nExtracted %d files\n", extracted)
	return nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

func (c *cli) cmdSearch(args []string) error {
	fs := c.flagSet("search")
	limit := fs.Int("n", 50, "Limit results (0 = all)")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usage("search <file.rpf> <pattern>")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}

	files := allFiles(archive)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	pattern := strings.ToLower(strings.ReplaceAll(fs.Arg(1), "/", `\`))

	count := 0
	for _, f := range files {
		if strings.Contains(f.Path, pattern) {
			fmt.Fprintln(c.out, f.Path)
			count++
			if *limit > 0 && count >= *limit {
				fmt.Fprintf(c.errOut, "\n(showing first %d matches, use -n 0 for all)\n", *limit)
				break
			}
		}
	}

	if count == 0 {
		fmt.Fprintln(c.errOut, "No files found")
	} else if *limit == 0 || count < *limit {
		fmt.Fprintf(c.errOut, "\n(%d files found)\n", count)
	}
	return nil
}

func (c *cli) cmdTree(args []string) error {
	fs := c.flagSet("tree")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage("tree <file.rpf>")
	}

	archive, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, archive.Name)
	c.printDir(archive, archive.Root, "")
	return nil
}

// printDir prints the children of dir, descending into nested archives.
func (c *cli) printDir(a *rpf3.Archive, dir *rpf3.DirectoryEntry, indent string) {
	children := append([]rpf3.Entry(nil), dir.Children...)
	sort.Slice(children, func(i, j int) bool {
		_, di := children[i].(*rpf3.DirectoryEntry)
		_, dj := children[j].(*rpf3.DirectoryEntry)
		if di != dj {
			return di
		}
		return children[i].Info().NameLower() < children[j].Info().NameLower()
	})

	for i, e := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		switch v := e.(type) {
		case *rpf3.DirectoryEntry:
			fmt.Fprintf(c.out, "%s%s%s\\\n", indent, branch, v.Name)
			c.printDir(a, v, indent+next)
		case *rpf3.FileEntry:
			fmt.Fprintf(c.out, "%s%s%s\n", indent, branch, v.Name)
			if child := a.FindChildArchive(v); child != nil && child.Root != nil {
				c.printDir(child, child.Root, indent+next)
			}
		}
	}
}
