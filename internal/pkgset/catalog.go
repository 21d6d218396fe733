package pkgset

// builtinCatalog returns the package sets seeded unconditionally at
// construction. Sets loaded from requirements files overlay these by key.
func builtinCatalog() []*PackageSet {
	defs := func(cat Category, names ...string) []PackageDefinition {
		packages := make([]PackageDefinition, len(names))
		for i, name := range names {
			packages[i] = PackageDefinition{Name: name, Status: StatusAvailable, Category: cat}
		}
		return packages
	}

	return []*PackageSet{
		{
			Name:        "data science essentials",
			Description: "Core numeric and analysis stack",
			Category:    CategoryDataScience,
			Packages:    defs(CategoryDataScience, "numpy", "pandas", "scipy", "matplotlib", "jupyter"),
		},
		{
			Name:        "machine learning basics",
			Description: "Classic ML toolchain",
			Category:    CategoryMachineLearning,
			Packages:    defs(CategoryMachineLearning, "scikit-learn", "numpy", "pandas", "joblib"),
		},
		{
			Name:        "web development",
			Description: "Web frameworks and HTTP tooling",
			Category:    CategoryWebDevelopment,
			Packages:    defs(CategoryWebDevelopment, "flask", "django", "requests", "gunicorn"),
		},
		{
			Name:        "deep learning",
			Description: "Neural network frameworks",
			Category:    CategoryMachineLearning,
			Packages:    defs(CategoryMachineLearning, "tensorflow", "keras", "torch", "torchvision"),
		},
		{
			Name:        "ai transformers",
			Description: "Transformer models and tokenizers",
			Category:    CategoryLLM,
			Packages:    defs(CategoryLLM, "transformers", "sentence-transformers", "datasets", "tokenizers"),
		},
		{
			Name:        "vector stores",
			Description: "Vector database clients",
			Category:    CategoryVectorDB,
			Packages:    defs(CategoryVectorDB, "chromadb", "qdrant-client", "pinecone-client", "faiss-cpu"),
		},
		{
			Name:        "streaming ingestion",
			Description: "Event streaming clients",
			Category:    CategoryStreaming,
			Packages:    defs(CategoryStreaming, "kafka-python", "confluent-kafka", "redis"),
		},
		{
			Name:        "document ai",
			Description: "Document parsing and OCR",
			Category:    CategoryDocumentAI,
			Packages:    defs(CategoryDocumentAI, "pypdf", "python-docx", "pytesseract", "unstructured"),
		},
		{
			Name:        "auto agents",
			Description: "LLM agent frameworks",
			Category:    CategoryAutomation,
			Packages:    defs(CategoryAutomation, "langchain", "openai", "tiktoken"),
		},
	}
}
