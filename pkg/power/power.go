package power

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/benmeehan/whoo-agent/pkg/file"
	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// DefaultSysfsRoot is where Linux exposes power supplies.
const DefaultSysfsRoot = "/sys/class/power_supply"

// ErrNoBattery is returned when no battery supply is present.
var ErrNoBattery = errors.New("no battery found")

// Status is one battery reading.
type Status struct {
	Level float64           // Percentage, 0-100
	State whoo.BatteryState // Charging state
}

// Reader reports the battery status.
type Reader interface {
	Read() (Status, error)
}

// StaticReader always reports the same status. Hosts without a battery use it.
type StaticReader struct {
	Status Status
}

func (s StaticReader) Read() (Status, error) {
	return s.Status, nil
}

// SysfsReader reads the first BAT* supply under Root.
type SysfsReader struct {
	Root    string
	FileOps file.FileOperations
}

// NewSysfsReader creates a reader over DefaultSysfsRoot.
func NewSysfsReader(fileOps file.FileOperations) *SysfsReader {
	return &SysfsReader{Root: DefaultSysfsRoot, FileOps: fileOps}
}

func (r *SysfsReader) Read() (Status, error) {
	batteries, err := r.FileOps.Glob(filepath.Join(r.Root, "BAT*"))
	if err != nil {
		return Status{}, fmt.Errorf("failed to list power supplies: %w", err)
	}
	if len(batteries) == 0 {
		return Status{}, ErrNoBattery
	}
	battery := batteries[0]

	capacity, err := r.FileOps.ReadFile(filepath.Join(battery, "capacity"))
	if err != nil {
		return Status{}, fmt.Errorf("failed to read battery capacity: %w", err)
	}
	level, err := strconv.ParseFloat(strings.TrimSpace(capacity), 64)
	if err != nil {
		return Status{}, fmt.Errorf("invalid battery capacity %q: %w", capacity, err)
	}
	level = min(max(level, 0), 100)

	state := whoo.BatteryUnknown
	if status, err := r.FileOps.ReadFile(filepath.Join(battery, "status")); err == nil {
		state = stateFromSysfs(status)
	}

	return Status{Level: level, State: state}, nil
}

// stateFromSysfs maps the kernel's POWER_SUPPLY_STATUS text.
func stateFromSysfs(status string) whoo.BatteryState {
	switch strings.TrimSpace(status) {
	case "Charging":
		return whoo.BatteryCharging
	case "Full", "Not charging":
		return whoo.BatteryFull
	case "Discharging":
		return whoo.BatteryDischarging
	default:
		return whoo.BatteryUnknown
	}
}
