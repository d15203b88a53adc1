package playback

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// unknownOwner is reported when the owning process cannot be resolved.
const unknownOwner = "UNKNOWN"

// ALSAProbe reads PCM device state from the /proc/asound status file.
//
// The kernel exposes one status file per playback subdevice. When the
// device is idle the file contains the single word "closed"; while a
// process is playing it contains a block of fields including owner_pid.
type ALSAProbe struct {
	statusPath string
	procRoot   string
	logger     Logger
}

// NewALSAProbe creates a probe for one ALSA playback subdevice.
//
// Parameters:
//   - card: ALSA card name as it appears under /proc/asound (e.g. "DAC")
//   - subdevice: playback subdevice index
//   - logger: Logger (may be nil)
func NewALSAProbe(card string, subdevice int, logger Logger) *ALSAProbe {
	if logger == nil {
		logger = noopLogger{}
	}
	p := &ALSAProbe{
		statusPath: fmt.Sprintf("/proc/asound/%s/pcm0p/sub%d/status", card, subdevice),
		procRoot:   "/proc",
		logger:     logger,
	}
	if _, err := os.Stat(p.statusPath); err != nil {
		// Not fatal: the device may be plugged in later. State() keeps
		// retrying every poll.
		p.logger.Warn("PCM status file not found, is the device connected?",
			"path", p.statusPath,
		)
	}
	return p
}

// State implements Probe.
//
// Returns:
//   - State: StateClosed when the first line reads "closed" or the file is
//     unreadable, StateOpen otherwise
//   - error: the read failure, if any (state is still usable)
func (p *ALSAProbe) State(_ context.Context) (State, error) {
	f, err := os.Open(p.statusPath)
	if err != nil {
		return StateClosed, fmt.Errorf("playback: reading PCM status: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return StateClosed, fmt.Errorf("playback: reading PCM status: %w", err)
		}
		return StateClosed, nil
	}

	status := strings.TrimSpace(scanner.Text())
	p.logger.Debug("PCM status read", "path", p.statusPath, "status", status)

	if status == "closed" {
		return StateClosed, nil
	}
	// Anything else (RUNNING, PREPARED, closing, ...) counts as open.
	return StateOpen, nil
}

// Owner implements Probe.
//
// It resolves the owner_pid field from the status file to the process
// command line. Every failure degrades to UNKNOWN.
func (p *ALSAProbe) Owner(_ context.Context) string {
	f, err := os.Open(p.statusPath)
	if err != nil {
		return unknownOwner
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "owner_pid") {
			continue
		}

		// Line format: "owner_pid   : 615"
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			return unknownOwner
		}
		pid, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			p.logger.Warn("failed to parse owner pid", "line", line, "error", err)
			return unknownOwner
		}
		return p.cmdline(pid)
	}
	return unknownOwner
}

// cmdline reads the command line of pid, NUL separators replaced by spaces.
func (p *ALSAProbe) cmdline(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/cmdline", p.procRoot, pid))
	if err != nil || len(data) == 0 {
		return unknownOwner
	}
	cmd := strings.ReplaceAll(strings.TrimRight(string(data), "\x00"), "\x00", " ")
	if cmd == "" {
		return unknownOwner
	}
	return cmd
}
