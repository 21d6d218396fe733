package health

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/registry"
)

// CheckStatus grades a runtime or an aggregate report.
type CheckStatus string

const (
	StatusHealthy   CheckStatus = "healthy"
	StatusDegraded  CheckStatus = "degraded"
	StatusUnhealthy CheckStatus = "unhealthy"
	StatusUnknown   CheckStatus = "unknown"
)

// RuntimeHealth is the outcome of one runtime's check sequence.
type RuntimeHealth struct {
	RuntimeID     string
	Name          string
	Status        CheckStatus
	PythonVersion string
	Issues        []string
	CheckedAt     time.Time
}

// IsHealthy reports whether the runtime passed every check.
func (h *RuntimeHealth) IsHealthy() bool {
	return h.Status == StatusHealthy
}

// Report aggregates one sweep over all registered runtimes.
type Report struct {
	GeneratedAt time.Time
	Overall     CheckStatus
	Runtimes    []*RuntimeHealth
	Summary     string
}

// Monitor runs health checks against every registered runtime, either on
// demand or on a fixed interval. A sweep never returns an error: anything
// unexpected is folded into the report as an Unknown entry.
type Monitor struct {
	registry *registry.Registry
	runner   python.Runner

	mu      sync.Mutex
	latest  *Report
	running bool

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a Monitor over the given registry.
func New(reg *registry.Registry, runner python.Runner) *Monitor {
	return &Monitor{
		registry: reg,
		runner:   runner,
		stopCh:   make(chan struct{}),
	}
}

// Check sweeps every registered runtime and returns the aggregate report.
func (m *Monitor) Check(ctx context.Context) *Report {
	runtimes := m.registry.List()

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Runtimes:    make([]*RuntimeHealth, 0, len(runtimes)),
	}

	healthy := 0
	degraded := 0
	for _, rt := range runtimes {
		h := m.checkRuntime(ctx, rt)
		report.Runtimes = append(report.Runtimes, h)
		switch h.Status {
		case StatusHealthy:
			healthy++
		case StatusDegraded:
			degraded++
		}
	}

	switch {
	case len(runtimes) == 0:
		report.Overall = StatusUnknown
	case healthy == len(runtimes):
		report.Overall = StatusHealthy
	case healthy+degraded == len(runtimes):
		report.Overall = StatusDegraded
	default:
		report.Overall = StatusUnhealthy
	}
	report.Summary = fmt.Sprintf("%d/%d runtimes healthy", healthy, len(runtimes))

	m.mu.Lock()
	m.latest = report
	m.mu.Unlock()

	return report
}

// Latest returns the most recent report, or nil before the first sweep.
func (m *Monitor) Latest() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// checkRuntime runs the check sequence for a single runtime. Fatal checks
// (missing path, missing interpreter, broken execution) stop the sequence;
// version probes only downgrade the status.
func (m *Monitor) checkRuntime(ctx context.Context, rt *python.Runtime) *RuntimeHealth {
	h := &RuntimeHealth{
		RuntimeID: rt.ID,
		Name:      rt.Name,
		CheckedAt: time.Now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			h.Status = StatusUnknown
			h.Issues = append(h.Issues, fmt.Sprintf("check aborted: %v", r))
		}
	}()

	if _, err := os.Stat(rt.Path); err != nil {
		h.Status = StatusUnhealthy
		h.Issues = append(h.Issues, fmt.Sprintf("runtime path not found: %s", rt.Path))
		return h
	}

	exe, ok := python.FindInterpreter(rt.Path)
	if !ok {
		h.Status = StatusUnhealthy
		h.Issues = append(h.Issues, fmt.Sprintf("no interpreter under %s", rt.Path))
		return h
	}

	if version, err := python.Version(ctx, m.runner, exe); err != nil {
		h.Issues = append(h.Issues, fmt.Sprintf("version probe failed: %v", err))
	} else {
		h.PythonVersion = version
	}

	if _, err := python.PipVersion(ctx, m.runner, exe); err != nil {
		h.Issues = append(h.Issues, fmt.Sprintf("pip probe failed: %v", err))
	}

	res, err := python.RunCode(ctx, m.runner, exe, "print('test')")
	if err != nil || res.ExitCode != 0 || strings.TrimSpace(res.Stdout) != "test" {
		h.Status = StatusUnhealthy
		if err != nil {
			h.Issues = append(h.Issues, fmt.Sprintf("code execution failed: %v", err))
		} else {
			h.Issues = append(h.Issues, fmt.Sprintf("code execution returned exit %d, stdout %q", res.ExitCode, strings.TrimSpace(res.Stdout)))
		}
		return h
	}

	if len(h.Issues) > 0 {
		h.Status = StatusDegraded
	} else {
		h.Status = StatusHealthy
	}
	return h
}

// Start begins periodic sweeps. The first sweep runs immediately; later ones
// fire on the interval. A tick that arrives while a sweep is still running
// is skipped.
func (m *Monitor) Start(interval time.Duration) {
	m.Check(context.Background())

	m.ticker = time.NewTicker(interval)
	m.wg.Add(1)
	go m.run()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ticker.C:
			m.mu.Lock()
			if m.running {
				// Prior sweep still in flight; skip this tick.
				m.mu.Unlock()
				continue
			}
			m.running = true
			m.mu.Unlock()

			m.wg.Add(1)
			go func() {
				defer m.wg.Done()

				report := m.Check(context.Background())
				log.WithFields(log.Fields{
					"overall": report.Overall,
					"summary": report.Summary,
				}).Debug("health sweep complete")

				m.mu.Lock()
				m.running = false
				m.mu.Unlock()
			}()
		case <-m.stopCh:
			return
		}
	}
}

// Stop halts periodic sweeps. Stopping a monitor that was never started, or
// stopping twice, is a no-op.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stopCh)
		if m.ticker != nil {
			m.ticker.Stop()
		}
		m.wg.Wait()
	})
}
