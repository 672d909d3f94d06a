package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/emuharness/internal/classify"
	"github.com/deixis/emuharness/internal/runner"
)

// Defaults for the RP2040 catalog.
const (
	DefaultMachine         = "raspberrypi-pico"
	DefaultScenarioTimeout = 2 * time.Second
	MissingFirmware        = "nonexistent.elf"
)

// maxListedBoards caps the board names quoted when the machine is missing.
const maxListedBoards = 10

// RP2040 returns the validation catalog for a QEMU build carrying the RP2040
// machine. An empty machine or non-positive timeout selects the defaults.
func RP2040(machine string, timeout time.Duration) *Catalog {
	if machine == "" {
		machine = DefaultMachine
	}
	if timeout <= 0 {
		timeout = DefaultScenarioTimeout
	}

	c, err := NewCatalog(
		Spec{
			Name:        "Board Availability",
			Description: "machine list includes " + machine,
			Args:        []string{"-M", "help"},
			Timeout:     timeout,
			Rule: classify.Expect{
				Stream:   classify.Stdout,
				Keywords: []string{machine},
				Default:  classify.FailByDefault,
				Hint:     availableBoards,
			},
		},
		Spec{
			Name:        "Machine Initialization",
			Description: "machine starts and exits without critical errors",
			Args:        []string{"-M", machine},
			Timeout:     timeout,
			Rule: classify.Forbid{
				Stream:   classify.Stderr,
				Keywords: []string{"segmentation fault", "assertion failed", "cannot allocate memory"},
				Default:  classify.PassByDefault,
			},
		},
		Spec{
			Name:        "Memory Regions",
			Description: "guest error log mentions at least two of rom, sram, flash",
			Args:        []string{"-M", machine, "-d", "guest_errors"},
			Timeout:     timeout,
			Rule: classify.Expect{
				Keywords:  []string{"rom", "sram", "flash"},
				Min:       2,
				Default:   classify.PassByDefault,
				TimeoutOK: true,
			},
		},
		Spec{
			Name:        "Peripheral Registration",
			Description: "monitor output mentions uart, gpio or sio",
			Args:        []string{"-M", machine, "-monitor", "stdio"},
			Timeout:     timeout,
			Rule: classify.Expect{
				Keywords:  []string{"uart", "gpio", "sio"},
				Default:   classify.PassByDefault,
				TimeoutOK: true,
			},
		},
		Spec{
			Name:        "Firmware Loading",
			Description: "loader reports a missing kernel image",
			Args:        []string{"-M", machine, "-kernel", MissingFirmware},
			Timeout:     timeout,
			Rule: classify.Expect{
				Stream:   classify.Stderr,
				Keywords: []string{"could not load kernel", MissingFirmware},
				Default:  classify.FailByDefault,
			},
		},
		Spec{
			Name:        "UART Configuration",
			Description: "serial backend attaches without uart errors",
			Args:        []string{"-M", machine, "-serial", "null"},
			Timeout:     timeout,
			Rule: classify.Forbid{
				Stream:   classify.Stderr,
				Keywords: []string{"uart", "error"},
				Together: true,
				Default:  classify.PassByDefault,
			},
		},
	)
	if err != nil {
		panic(fmt.Sprintf("scenario: invalid RP2040 catalog: %v", err))
	}
	return c
}

// availableBoards lists the first machine names QEMU printed.
func availableBoards(out *runner.Outcome) string {
	var boards []string
	for _, line := range strings.Split(out.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Supported machines") {
			continue
		}
		boards = append(boards, strings.Fields(line)[0])
		if len(boards) == maxListedBoards {
			break
		}
	}
	if len(boards) == 0 {
		return ""
	}
	return "available: " + strings.Join(boards, ", ")
}
