package bootconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const bootCfg = `# two kernels on the same partition
LABEL=Angstrom
KERNEL=/boot/zImage
INITRD=/boot/initrd.img
DTB=/boot/board.dtb
CMDLINE_APPEND=quiet
PRIORITY=10
ICON=/boot/icon.png

LABEL=Rescue
kernel = /boot/zImage-rescue
append=console=ttyS0 root=/dev/ram0
exec=/usr/sbin/prepare-boot --fast
priority=20
`

func TestParse(t *testing.T) {
	sections, err := Parse(strings.NewReader(bootCfg), "/mnt")
	require.NoError(t, err)
	require.Equal(t, []Section{
		{
			Label:         "Angstrom",
			Kernel:        "/mnt/boot/zImage",
			Initrd:        "/mnt/boot/initrd.img",
			DTB:           "/mnt/boot/board.dtb",
			CmdlineAppend: "quiet",
			Priority:      10,
			Icon:          "/mnt/boot/icon.png",
		},
		{
			Label:    "Rescue",
			Kernel:   "/mnt/boot/zImage-rescue",
			Cmdline:  "console=ttyS0 root=/dev/ram0",
			Exec:     "/usr/sbin/prepare-boot --fast",
			Priority: 20,
		},
	}, sections)
}

func TestParseKernelStartsSection(t *testing.T) {
	sections, err := Parse(strings.NewReader("KERNEL=/zImage\nKERNEL=/boot/zImage\nPRIORITY=3\n"), "/mnt")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	require.Equal(t, "/mnt/zImage", sections[0].Kernel)
	require.Equal(t, 0, sections[0].Priority)
	require.Equal(t, "/mnt/boot/zImage", sections[1].Kernel)
	require.Equal(t, 3, sections[1].Priority)
}

func TestParseDropsBrokenSections(t *testing.T) {
	cfg := `LABEL=no kernel
INITRD=/initrd

LABEL=bad priority
KERNEL=/zImage
PRIORITY=high

LABEL=garbage
KERNEL=/zImage-2
this line is garbage

LABEL=good
KERNEL=/zImage-3
`
	sections, err := Parse(strings.NewReader(cfg), "/mnt")
	require.ErrorIs(t, err, ErrParse)
	require.Len(t, sections, 1)
	require.Equal(t, "good", sections[0].Label)
}

func TestParseUnknownKeyKeepsSection(t *testing.T) {
	sections, err := Parse(strings.NewReader("KERNEL=/zImage\nCOLOR=blue\n"), "/mnt")
	require.ErrorIs(t, err, ErrParse)
	require.Len(t, sections, 1)
}

func TestParseHookOutput(t *testing.T) {
	section, err := ParseHookOutput("DTB=/boot/variant-b.dtb\nCMDLINE_APPEND=board=b\n", "/mnt")
	require.NoError(t, err)
	require.Equal(t, "/mnt/boot/variant-b.dtb", section.DTB)
	require.Equal(t, "board=b", section.CmdlineAppend)

	section, err = ParseHookOutput("", "/mnt")
	require.NoError(t, err)
	require.Equal(t, Section{}, section)
}
