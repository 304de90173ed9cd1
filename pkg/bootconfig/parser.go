package bootconfig

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Configuration keys.
const (
	KeyLabel         = "LABEL"
	KeyKernel        = "KERNEL"
	KeyInitrd        = "INITRD"
	KeyDTB           = "DTB"
	KeyAppend        = "APPEND"
	KeyCmdlineAppend = "CMDLINE_APPEND"
	KeyExec          = "EXEC"
	KeyPriority      = "PRIORITY"
	KeyIcon          = "ICON"
)

type parsedSection struct {
	Section
	broken bool
}

// Parse reads a boot.cfg and returns its valid sections in file order. Paths
// are rooted at root. Malformed sections are dropped and reported in the
// returned error, the remaining sections are still returned.
func Parse(r io.Reader, root string) ([]Section, error) {
	parsed, err := parse(r, root)

	var sections []Section
	for _, p := range parsed {
		if !p.broken && p.IsValid() {
			sections = append(sections, p.Section)
		}
	}
	return sections, err
}

// ParseHookOutput parses the output of a pre-boot hook. Only the last
// section is meaningful, and it needs no kernel.
func ParseHookOutput(out string, root string) (Section, error) {
	parsed, err := parse(strings.NewReader(out), root)
	if len(parsed) == 0 {
		return Section{}, err
	}
	return parsed[len(parsed)-1].Section, err
}

func parse(r io.Reader, root string) ([]*parsedSection, error) {
	var (
		sections []*parsedSection
		current  *parsedSection
		errs     *multierror.Error
	)

	begin := func() {
		current = &parsedSection{}
		sections = append(sections, current)
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: line %d: expected KEY=value", ErrParse, lineNo))
			if current != nil {
				current.broken = true
			}
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case KeyLabel:
			begin()
			current.Label = value
			continue
		case KeyKernel:
			if current == nil || current.Kernel != "" {
				begin()
			}
			current.Kernel = resolve(root, value)
			continue
		}

		if current == nil {
			begin()
		}

		switch key {
		case KeyInitrd:
			current.Initrd = resolve(root, value)
		case KeyDTB:
			current.DTB = resolve(root, value)
		case KeyAppend:
			current.Cmdline = value
		case KeyCmdlineAppend:
			current.CmdlineAppend = value
		case KeyExec:
			current.Exec = value
		case KeyIcon:
			current.Icon = resolve(root, value)
		case KeyPriority:
			priority, err := strconv.Atoi(value)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%w: line %d: bad priority %q", ErrParse, lineNo, value))
				current.broken = true
				continue
			}
			current.Priority = priority
		default:
			errs = multierror.Append(errs, fmt.Errorf("%w: line %d: unknown key %q", ErrParse, lineNo, key))
		}
	}
	if err := scanner.Err(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%w: %w", ErrParse, err))
	}

	return sections, errs.ErrorOrNil()
}
