package pipeline

// Stage identifies one step of the AI pipeline. Stages run strictly in
// order: analyze, then correlate, then generate.
type Stage string

const (
	StageAnalyze   Stage = "analyze"
	StageCorrelate Stage = "correlate"
	StageGenerate  Stage = "generate"
)

// AnalyzedActivity is one activity as categorized by the analyze stage.
// Selected mirrors the wizard's selection set; it is a derived view and is
// never the source of truth.
type AnalyzedActivity struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Selected  bool   `json:"selected"`
}

// Category groups analyzed activities under an AI-chosen label.
type Category struct {
	Label   string             `json:"label"`
	Summary string             `json:"summary,omitempty"`
	Items   []AnalyzedActivity `json:"items"`
}

// Correlation links related activities discovered by the correlate stage.
type Correlation struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description"`
	ActivityIDs []string `json:"activity_ids,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// OrganizedData is the analyze/correlate output.
type OrganizedData struct {
	Categories      []Category    `json:"categories"`
	Correlations    []Correlation `json:"correlations,omitempty"`
	SuggestedTitle  string        `json:"suggestedTitle,omitempty"`
	ContextSummary  string        `json:"contextSummary,omitempty"`
	ExtractedSkills []string      `json:"extractedSkills,omitempty"`
}

// GeneratedContent is the generate stage output.
type GeneratedContent struct {
	Title       string   `json:"title,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	FullContent string   `json:"fullContent,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

// Result bundles the outputs of a full pipeline run.
type Result struct {
	Organized *OrganizedData
	Generated *GeneratedContent
}
