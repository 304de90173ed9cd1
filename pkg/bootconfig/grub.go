package bootconfig

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// List of directories where to look for grub config files. The root directory
// of each mountpoint, these folders inside the mountpoint and all subfolders
// of these folders are searched
var (
	GrubSearchDirectories = []string{
		"boot",
		"EFI",
		"efi",
		"grub",
		"grub2",
	}
)

type grubVersion int

const (
	grubV1 grubVersion = 1
	grubV2 grubVersion = 2
)

func isGrubSearchDir(dirname string) bool {
	return slices.Contains(GrubSearchDirectories, dirname)
}

// ParseGrubCfg parses the content of a grub.cfg and returns one Section per
// menuentry, in the same order as they appear in grub.cfg. Kernel, initrd and
// devicetree paths are rooted at basedir.
func ParseGrubCfg(ver grubVersion, grubcfg string, basedir string) []Section {
	// It just looks for lines starting with menuentry, linux, initrd or
	// devicetree.
	if ver != grubV1 && ver != grubV2 {
		return nil
	}
	var (
		sections []Section
		cfg      *Section
	)
	for _, line := range strings.Split(grubcfg, "\n") {
		sline := strings.Fields(line)
		if len(sline) == 0 {
			continue
		}
		if sline[0] == "menuentry" {
			if cfg != nil && cfg.IsValid() {
				sections = append(sections, *cfg)
			}
			cfg = &Section{Label: menuEntryName(sline[1:])}
			continue
		}
		if cfg == nil || len(sline) < 2 {
			continue
		}
		switch sline[0] {
		case "linux", "linux16", "linuxefi":
			cfg.Kernel = resolve(basedir, sline[1])
			cfg.Cmdline = unquote(ver, strings.Join(sline[2:], " "))
		case "initrd", "initrd16", "initrdefi":
			cfg.Initrd = resolve(basedir, sline[1])
		case "devicetree":
			cfg.DTB = resolve(basedir, sline[1])
		}
	}
	if cfg != nil && cfg.IsValid() {
		sections = append(sections, *cfg)
	}
	return sections
}

func menuEntryName(fields []string) string {
	name := strings.Join(fields, " ")
	name = strings.Split(name, "--")[0]
	name = strings.TrimSuffix(strings.TrimSpace(name), "{")
	return strings.Trim(name, `'" `)
}

func unquote(ver grubVersion, text string) string {
	if ver == grubV2 {
		// if grub2, unquote the string, as directives could be quoted
		// https://www.gnu.org/software/grub/manual/grub/grub.html#Quoting
		// TODO unquote everything, not just \$
		return strings.ReplaceAll(text, `\$`, "$")
	}
	return text
}

// ScanGrubConfigs looks for grub2 and grub legacy config files in the known
// locations under basedir and returns their menu entries.
func ScanGrubConfigs(logger *zap.Logger, basedir string) []Section {
	var sections []Section
	err := filepath.WalkDir(basedir, func(currentPath string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("skipping unreadable path", zap.String("path", currentPath), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if filepath.Dir(currentPath) == filepath.Clean(basedir) && !isGrubSearchDir(d.Name()) {
				return filepath.SkipDir // skip irrelevant toplevel directories
			}
			return nil
		}
		var ver grubVersion
		switch d.Name() {
		case "grub.cfg":
			ver = grubV1
		case "grub2.cfg":
			ver = grubV2
		default:
			return nil
		}
		grubcfg, err := os.ReadFile(currentPath)
		if err != nil {
			logger.Warn("can't read grub config", zap.String("path", currentPath), zap.Error(err))
			return nil
		}
		logger.Debug("parsing grub config", zap.String("path", currentPath))
		sections = append(sections, ParseGrubCfg(ver, string(grubcfg), basedir)...)
		return nil
	})
	if err != nil {
		logger.Warn("grub config walk failed", zap.String("root", basedir), zap.Error(err))
	}
	return sections
}
