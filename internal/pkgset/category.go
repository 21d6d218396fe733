package pkgset

import "strings"

// categoryRule matches a package list against one category. Rules are
// evaluated top to bottom; the first match wins.
type categoryRule struct {
	category Category
	// any matches if one of these names is present.
	any []string
	// all, when set, requires every name to be present instead.
	all []string
}

// inferenceRules is the ordered rule list for inferring a set's category
// from its package names. Order matters: a list with tensorflow, numpy and
// pandas is MachineLearning, not DataScience.
var inferenceRules = []categoryRule{
	{category: CategoryMachineLearning, any: []string{"tensorflow", "keras", "torch", "pytorch", "sklearn", "scikit-learn"}},
	{category: CategoryDataScience, all: []string{"numpy", "pandas"}},
	{category: CategoryWebDevelopment, any: []string{"flask", "django", "requests"}},
	{category: CategoryGraphics, any: []string{"pillow", "opencv-python", "opencv", "matplotlib"}},
	{category: CategoryDatabase, any: []string{"sqlalchemy", "psycopg2", "psycopg", "mysql-connector-python", "pymysql", "sqlite-utils"}},
}

// InferCategory determines a category for a package name list using the
// ordered keyword rules, falling back to Uncategorized.
func InferCategory(names []string) Category {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[strings.ToLower(name)] = true
	}

	for _, rule := range inferenceRules {
		if len(rule.all) > 0 {
			matched := true
			for _, name := range rule.all {
				if !present[name] {
					matched = false
					break
				}
			}
			if matched {
				return rule.category
			}
			continue
		}
		for _, name := range rule.any {
			if present[name] {
				return rule.category
			}
		}
	}
	return CategoryUncategorized
}

// wellKnownCategories tags individual packages for the majority vote in
// SaveFromEnvironment.
var wellKnownCategories = map[string]Category{
	"numpy":                 CategoryDataScience,
	"pandas":                CategoryDataScience,
	"scipy":                 CategoryDataScience,
	"statsmodels":           CategoryDataScience,
	"polars":                CategoryDataScience,
	"jupyter":               CategoryDataScience,
	"scikit-learn":          CategoryMachineLearning,
	"sklearn":               CategoryMachineLearning,
	"xgboost":               CategoryMachineLearning,
	"lightgbm":              CategoryMachineLearning,
	"tensorflow":            CategoryMachineLearning,
	"keras":                 CategoryMachineLearning,
	"torch":                 CategoryMachineLearning,
	"torchvision":           CategoryMachineLearning,
	"joblib":                CategoryMachineLearning,
	"flask":                 CategoryWebDevelopment,
	"django":                CategoryWebDevelopment,
	"requests":              CategoryWebDevelopment,
	"gunicorn":              CategoryWebDevelopment,
	"fastapi":               CategoryWebDevelopment,
	"uvicorn":               CategoryWebDevelopment,
	"pillow":                CategoryGraphics,
	"opencv-python":         CategoryGraphics,
	"matplotlib":            CategoryGraphics,
	"seaborn":               CategoryGraphics,
	"sqlalchemy":            CategoryDatabase,
	"psycopg2":              CategoryDatabase,
	"pymysql":               CategoryDatabase,
	"chromadb":              CategoryVectorDB,
	"qdrant-client":         CategoryVectorDB,
	"pinecone-client":       CategoryVectorDB,
	"faiss-cpu":             CategoryVectorDB,
	"transformers":          CategoryLLM,
	"sentence-transformers": CategoryLLM,
	"tokenizers":            CategoryLLM,
	"langchain":             CategoryAutomation,
	"openai":                CategoryAutomation,
	"kafka-python":          CategoryStreaming,
	"confluent-kafka":       CategoryStreaming,
	"redis":                 CategoryStreaming,
	"pypdf":                 CategoryDocumentAI,
	"python-docx":           CategoryDocumentAI,
	"pytesseract":           CategoryDocumentAI,
}

// PackageCategory returns the category tag for a single package, or
// Uncategorized for unknown names.
func PackageCategory(name string) Category {
	if cat, ok := wellKnownCategories[strings.ToLower(name)]; ok {
		return cat
	}
	return CategoryUncategorized
}

// dominantCategory picks the category held by the most packages. Ties break
// alphabetically on the category name so the result is deterministic.
func dominantCategory(packages []PackageDefinition) Category {
	if len(packages) == 0 {
		return CategoryUncategorized
	}

	counts := make(map[Category]int)
	for _, p := range packages {
		counts[p.Category]++
	}

	var winner Category
	best := -1
	for cat, n := range counts {
		if n > best || (n == best && cat < winner) {
			winner = cat
			best = n
		}
	}
	return winner
}
