package richtext

// ConversionContext carries the lookup state one document conversion needs.
// All maps are owned by the orchestrator and read synchronously; the converter
// never mutates them.
type ConversionContext struct {
	Locale string
	Label  string // document label for log output, e.g. "article 42 (en)"

	Media    map[string]string // legacy media URL → destination media id
	Forms    map[string]string // form type → destination form id
	Videos   map[string]string // provider video id → destination doc id
	Articles map[int64]string  // legacy article id → destination article id

	MeditationTitles map[int64]string  // legacy meditation id → legacy title
	MeditationIDs    map[string]string // destination title → destination doc id
	TitleAliases     map[string]string // legacy title → renamed destination title
}
