package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// maxStackDump caps the all-goroutine dump written to a crash file
const maxStackDump = 16 * 1024 * 1024

// crashState is what a crash file reports besides the panic itself: where
// the bot was pointed and which analyses were running when it died.
type crashState struct {
	mu      sync.Mutex
	dir     string
	summary []string
	runs    map[string]activeRun
}

type activeRun struct {
	channelID string
	inputs    int
	started   time.Time
}

var crash = &crashState{dir: "./logs", runs: make(map[string]activeRun)}

// InstallCrashHandler points crash files at the configured log directory and
// records the endpoints the bot runs against
func InstallCrashHandler(cfg *Config) {
	crash.mu.Lock()
	defer crash.mu.Unlock()

	if cfg.Logging.Dir != "" {
		crash.dir = cfg.Logging.Dir
	}
	crash.summary = []string{
		"environment=" + cfg.Environment,
		"mattermost=" + cfg.Mattermost.URL,
		"event_source=" + cfg.Chat.EventSource,
		"confluence=" + cfg.Confluence.BaseURL,
		fmt.Sprintf("llm=%s/%s", cfg.LLM.Provider, cfg.LLM.Model),
		"sessions=" + cfg.Sessions.Backend,
	}

	if err := os.MkdirAll(crash.dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// TrackActiveRun registers an analysis in progress for the user. The
// returned func removes it again and must be called when the run ends.
func TrackActiveRun(userID, channelID string, inputs int) func() {
	crash.mu.Lock()
	crash.runs[userID] = activeRun{channelID: channelID, inputs: inputs, started: time.Now()}
	crash.mu.Unlock()

	return func() {
		crash.mu.Lock()
		delete(crash.runs, userID)
		crash.mu.Unlock()
	}
}

// ActiveRunCount returns the number of analyses currently registered
func ActiveRunCount() int {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	return len(crash.runs)
}

// WriteCrashFile writes the crash report to the log directory and returns
// its path. When the file cannot be written the report goes to stderr and
// the path is empty.
func WriteCrashFile(panicVal any, stackTrace string) string {
	now := time.Now()
	report := buildCrashReport(now, panicVal, stackTrace)

	crash.mu.Lock()
	dir := crash.dir
	crash.mu.Unlock()

	crashPath := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))
	if err := os.WriteFile(crashPath, []byte(report), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n%s", err, report)
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\n", crashPath)
	fmt.Fprintf(os.Stderr, "Panic: %v\n", panicVal)
	return crashPath
}

func buildCrashReport(now time.Time, panicVal any, stackTrace string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== DOSSIER CRASH REPORT ===\n")
	fmt.Fprintf(&b, "Time: %s\nVersion: %s\n", now.Format(time.RFC3339), GetFullVersion())

	crash.mu.Lock()
	summary := append([]string(nil), crash.summary...)
	users := make([]string, 0, len(crash.runs))
	for userID := range crash.runs {
		users = append(users, userID)
	}
	sort.Strings(users)
	runs := make([]string, 0, len(users))
	for _, userID := range users {
		run := crash.runs[userID]
		runs = append(runs, fmt.Sprintf("user=%s channel=%s inputs=%d running=%s",
			userID, run.channelID, run.inputs, now.Sub(run.started).Round(time.Second)))
	}
	crash.mu.Unlock()

	if len(summary) > 0 {
		fmt.Fprintf(&b, "Config: %s\n", strings.Join(summary, " "))
	}

	fmt.Fprintf(&b, "\n=== PANIC ===\n%v\n\n=== STACK TRACE ===\n%s\n", panicVal, stackTrace)

	fmt.Fprintf(&b, "\n=== ACTIVE ANALYSES (%d) ===\n", len(runs))
	for _, run := range runs {
		b.WriteString(run + "\n")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&b, "\n=== RUNTIME ===\nGoroutines: %d\nAlloc: %d MB\nSys: %d MB\nNumGC: %d\n",
		runtime.NumGoroutine(), mem.Alloc/1024/1024, mem.Sys/1024/1024, mem.NumGC)

	fmt.Fprintf(&b, "\n=== ALL GOROUTINES ===\n%s\n=== END CRASH REPORT ===\n", stackDump(true))
	return b.String()
}

// stackDump returns the stack of the calling goroutine, or of all goroutines
func stackDump(all bool) string {
	buf := make([]byte, 8*1024)
	for {
		n := runtime.Stack(buf, all)
		if n < len(buf) || len(buf) >= maxStackDump {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashFile writes a crash file for a panic that reached main and
// exits. Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, stackDump(false))
		os.Exit(1)
	}
}
