package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Template is a declarative preset for a bootstrap run: which Python to
// guarantee, which environment to create, and which package set to install.
type Template struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	PythonVersion string `yaml:"python_version"` // prefix match, "" = any
	EnvName       string `yaml:"env_name"`
	PackageSet    string `yaml:"package_set"` // "" = no packages
}

// builtinTemplates are always available; YAML files overlay them by name.
func builtinTemplates() []*Template {
	return []*Template{
		{
			Name:        "minimal",
			Description: "A bare runtime with an empty virtual environment",
			EnvName:     "minimal",
		},
		{
			Name:        "data-science",
			Description: "Runtime plus the data science essentials set",
			EnvName:     "datasci",
			PackageSet:  "data science essentials",
		},
	}
}

// loadTemplates reads *.yaml template files from dir, overlaying the
// built-ins. A template without a name takes its file name.
func loadTemplates(dir string) (map[string]*Template, error) {
	templates := make(map[string]*Template)
	for _, t := range builtinTemplates() {
		templates[t.Name] = t
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return templates, nil
		}
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", path, err)
		}

		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			log.WithFields(log.Fields{"file": path}).Warnf("skipping invalid template: %v", err)
			continue
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(strings.TrimSuffix(e.Name(), ".yaml"), ".yml")
		}
		if t.EnvName == "" {
			t.EnvName = t.Name
		}
		templates[t.Name] = &t
	}

	return templates, nil
}
