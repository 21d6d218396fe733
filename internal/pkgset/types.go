package pkgset

import "strings"

// Category tags a package or package set with its dominant domain.
type Category string

const (
	CategoryDataScience     Category = "DataScience"
	CategoryMachineLearning Category = "MachineLearning"
	CategoryWebDevelopment  Category = "WebDevelopment"
	CategoryGraphics        Category = "Graphics"
	CategoryDatabase        Category = "Database"
	CategoryVectorDB        Category = "VectorDB"
	CategoryLLM             Category = "LLM"
	CategoryStreaming       Category = "Streaming"
	CategoryDocumentAI      Category = "DocumentAI"
	CategoryAutomation      Category = "Automation"
	CategoryUncategorized   Category = "Uncategorized"
)

// PackageStatus tracks the outcome of the last operation on a package.
type PackageStatus string

const (
	StatusAvailable PackageStatus = "available"
	StatusInstalled PackageStatus = "installed"
	StatusFailed    PackageStatus = "failed"
)

// PackageDefinition is one package specification inside a set. Constraint is
// the pip-style version constraint including its operator ("==1.26.4",
// ">=2.0"), or empty for an unpinned package.
type PackageDefinition struct {
	Name       string
	Constraint string
	Status     PackageStatus
	Category   Category
}

// Spec renders the pip install argument for the package.
func (p PackageDefinition) Spec() string {
	return p.Name + p.Constraint
}

// PackageSet is a named, reusable bundle of package specifications.
type PackageSet struct {
	Name        string
	Description string
	Category    Category
	Packages    []PackageDefinition
}

// Versions returns the name -> constraint mapping for the pinned packages.
// Its key set is always a subset of the set's package names.
func (s *PackageSet) Versions() map[string]string {
	versions := make(map[string]string)
	for _, p := range s.Packages {
		if p.Constraint != "" {
			versions[p.Name] = p.Constraint
		}
	}
	return versions
}

// Names returns the package names in set order.
func (s *PackageSet) Names() []string {
	names := make([]string, len(s.Packages))
	for i, p := range s.Packages {
		names[i] = p.Name
	}
	return names
}

// normalizeKey maps a set name to its lookup/file key: lower-cased with
// spaces turned into underscores.
func normalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// displayName is the inverse of normalizeKey for names loaded from files.
func displayName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
