// Package output provides terminal output utilities for pyforge.
//
// This package includes:
//   - Table rendering for runtimes, virtual environments, package sets,
//     and health reports
//   - Progress bars for long-running operations
//   - Spinners for indeterminate operations
//
// All table rendering functions use ASCII characters and ANSI color codes
// for terminal output. Progress indicators are thread-safe.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/pyforge-dev/pyforge/internal/health"
	"github.com/pyforge-dev/pyforge/internal/pkgset"
	"github.com/pyforge-dev/pyforge/internal/python"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderRuntimeTable renders a table of registered Python runtimes.
func RenderRuntimeTable(runtimes []*python.Runtime) string {
	if len(runtimes) == 0 {
		return "No runtimes registered. Run 'pyforge scan' to discover interpreters.\n"
	}

	sorted := make([]*python.Runtime, len(runtimes))
	copy(sorted, runtimes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-18s %-10s %-9s %-6s %-13s %s\n",
		"Name", "Version", "Kind", "Pkg", "Discovered", "Path"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, rt := range sorted {
		sb.WriteString(fmt.Sprintf("%-18s %-10s %-9s %-6s %-13s %s\n",
			truncate(rt.Name, 18),
			rt.Version,
			rt.Kind,
			rt.PackageManager,
			formatRelativeTime(rt.DiscoveredAt),
			rt.Path))
	}

	return sb.String()
}

// RenderEnvironmentTable renders a table of virtual environments.
func RenderEnvironmentTable(envs []*python.Environment) string {
	if len(envs) == 0 {
		return "No virtual environments found.\n"
	}

	sorted := make([]*python.Environment, len(envs))
	copy(sorted, envs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-18s %-10s %-12s %-13s %s\n",
		"Name", "Python", "Auto-update", "Created", "Path"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, env := range sorted {
		auto := "off"
		if env.AutoUpdate {
			auto = "on"
		}
		sb.WriteString(fmt.Sprintf("%-18s %-10s %-12s %-13s %s\n",
			truncate(env.Name, 18),
			env.PythonVersion,
			auto,
			formatRelativeTime(env.CreatedAt),
			env.Path))
	}

	return sb.String()
}

// RenderPackageSetTable renders the package set catalog.
func RenderPackageSetTable(sets []*pkgset.PackageSet) string {
	if len(sets) == 0 {
		return "No package sets available.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-26s %-18s %-9s %s\n",
		"Name", "Category", "Packages", "Description"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, set := range sets {
		sb.WriteString(fmt.Sprintf("%-26s %-18s %-9d %s\n",
			truncate(set.Name, 26),
			set.Category,
			len(set.Packages),
			truncate(set.Description, 40)))
	}

	return sb.String()
}

// RenderPackageSetDetail renders one package set with its full package list.
func RenderPackageSetDetail(set *pkgset.PackageSet) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Name:        %s\n", set.Name))
	sb.WriteString(fmt.Sprintf("Category:    %s\n", set.Category))
	if set.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", set.Description))
	}
	sb.WriteString("\nPackages:\n")
	for _, pkg := range set.Packages {
		sb.WriteString(fmt.Sprintf("  %s\n", pkg.Spec()))
	}

	return sb.String()
}

// RenderHealthReport renders a health report with per-runtime status markers.
// Healthy runtimes show ✓, degraded ⚠, unhealthy ✗.
func RenderHealthReport(report *health.Report) string {
	var sb strings.Builder

	for _, rt := range report.Runtimes {
		marker, color := statusMarker(rt.Status)
		version := rt.PythonVersion
		if version == "" {
			version = "?"
		}
		sb.WriteString(fmt.Sprintf("%s %s (Python %s)\n",
			colorize(color, marker), rt.Name, version))
		for _, issue := range rt.Issues {
			sb.WriteString(fmt.Sprintf("    %s\n", issue))
		}
	}

	if len(report.Runtimes) > 0 {
		sb.WriteString("\n")
	}
	_, overallColor := statusMarker(report.Overall)
	sb.WriteString(fmt.Sprintf("%s (%s)\n", report.Summary, colorize(overallColor, string(report.Overall))))

	return sb.String()
}

func statusMarker(s health.CheckStatus) (string, string) {
	switch s {
	case health.StatusHealthy:
		return "✓", colorGreen
	case health.StatusDegraded:
		return "⚠", colorYellow
	case health.StatusUnhealthy:
		return "✗", colorRed
	default:
		return "?", colorGray
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
