package pkgset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// constraintOperators, longest first so "==" wins over "=".
var constraintOperators = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

// Requirement is one parsed line of a pip requirements file.
type Requirement struct {
	Name       string
	Constraint string // operator included, "" for a bare name
}

// ParseRequirements reads pip requirements syntax: one `name==version`,
// `name>=version`, or bare `name` per line, with `#` comments.
func ParseRequirements(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Strip trailing comments.
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		req := Requirement{Name: line}
		for _, op := range constraintOperators {
			if i := strings.Index(line, op); i > 0 {
				req.Name = strings.TrimSpace(line[:i])
				req.Constraint = strings.TrimSpace(line[i:])
				break
			}
		}
		if req.Name == "" {
			continue
		}
		reqs = append(reqs, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read requirements: %w", err)
	}
	return reqs, nil
}

// ParseRequirementsFile reads a requirements file from disk.
func ParseRequirementsFile(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open requirements file: %w", err)
	}
	defer f.Close()

	return ParseRequirements(f)
}

// WriteRequirements renders requirements sorted by name, one per line.
func WriteRequirements(w io.Writer, reqs []Requirement) error {
	sorted := make([]Requirement, len(reqs))
	copy(sorted, reqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, req := range sorted {
		if _, err := fmt.Fprintf(w, "%s%s\n", req.Name, req.Constraint); err != nil {
			return fmt.Errorf("failed to write requirements: %w", err)
		}
	}
	return nil
}

// WriteRequirementsFile writes a requirements file to disk.
func WriteRequirementsFile(path string, reqs []Requirement) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create requirements file: %w", err)
	}

	err = WriteRequirements(f, reqs)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close requirements file: %w", closeErr)
	}
	return nil
}
