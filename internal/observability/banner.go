package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[96m"
	colorPurple = "\033[35m"
	colorMag    = "\033[95m"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}
var spinnerIdx = 0

// termMu synchronizes ALL terminal output so that the cursor save/restore in
// PrintLiveStatus can never be interrupted by a log write.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
    ____  _____  ______ ______ __ __
   / __ \/__  / / ____// ____// //_/
  / / / /  / / / __/  / /    / ,<
 / /_/ /  / /__/ /___/ /___ / /| |
/_____/  /____/_____/\____//_/ |_|

    >> AUTONOMOUS RECOVERY ENGINE <<
`

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorCyan+l, colorReset)
	}
}

func InitializeTerminal() {
	// Header/Logo area: 1-8, status line: 9, scrolling logs: 11+
	fmt.Print("\033[11;r")
	fmt.Print("\033[11;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// PrintLiveStatus redraws the one-line dashboard: heartbeat health, active
// role, current goal with plan progress, and process memory.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memMB := float64(m.Alloc) / 1024 / 1024

	role, goal, lastHB := GetStatus()
	done, total := Progress()

	pulse := "DOWN"
	pulseColor := colorMag
	delta := time.Since(lastHB)
	if delta < 40*time.Second {
		pulse = "HEALTHY"
		pulseColor = colorCyan
	} else if delta < 90*time.Second {
		pulse = "LAGGING"
		pulseColor = colorPurple
	}

	spinner := " "
	if role != RoleIdle {
		spinner = spinnerFrames[spinnerIdx]
		spinnerIdx = (spinnerIdx + 1) % len(spinnerFrames)
	}

	displayGoal := goal
	if displayGoal == "" {
		displayGoal = "Waiting..."
	}
	if len(displayGoal) > 32 {
		displayGoal = displayGoal[:29] + "..."
	}
	if total > 0 {
		displayGoal = fmt.Sprintf("%s [%d/%d]", displayGoal, done, total)
	}

	uptime := time.Since(startTime).Round(time.Second)

	statusStr := fmt.Sprintf(
		"\033[s\033[9;1H\033[K%s[%s] %s%-7s%s | %-7s | %s | %s%s%s | up %v | %.1fMB\033[u",
		colorReset,
		lastHB.Format("15:04:05"),
		pulseColor, pulse, colorReset,
		role,
		displayGoal,
		colorPurple, spinner, colorReset,
		uptime,
		memMB,
	)

	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}
