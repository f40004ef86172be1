package platform

// Destination collection names.
const (
	CollAuthors        = "authors"
	CollCategories     = "categories"
	CollArticles       = "articles"
	CollPages          = "pages"
	CollMedia          = "media"
	CollForms          = "forms"
	CollExternalVideos = "external-videos"
	CollMeditations    = "meditations"
)

// MarkerField tags every document the importer creates so reset can find and
// remove them without touching editorial content.
const (
	MarkerField = "_importedBy"
	MarkerValue = "pagelift"
)

// WrittenCollections are the collections the importer creates documents in,
// in reset-safe order (content references first, referenced entities last).
var WrittenCollections = []string{
	CollArticles,
	CollPages,
	CollExternalVideos,
	CollForms,
	CollMedia,
	CollCategories,
	CollAuthors,
}

// localizedFields mirrors the destination schema: which fields each
// collection stores per locale. Everything else is written flat.
var localizedFields = map[string]map[string]bool{
	CollAuthors: {
		"name": true,
		"slug": true,
		"bio":  true,
	},
	CollCategories: {
		"name": true,
		"slug": true,
	},
	CollArticles: {
		"title":   true,
		"slug":    true,
		"excerpt": true,
		"content": true,
	},
	CollPages: {
		"title":   true,
		"slug":    true,
		"content": true,
	},
	CollMeditations: {
		"title": true,
	},
}

func isLocalized(collection, field string) bool {
	return localizedFields[collection][field]
}
