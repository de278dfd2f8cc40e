package routedoc

// ModifiedLine is one line-level substitution inside a ChangeSet. Before and
// after are full line texts; only bullet rule lines are editable.
type ModifiedLine struct {
	LineNumber int      `json:"line_number"`
	Section    string   `json:"section"`
	Before     string   `json:"before"`
	After      string   `json:"after"`
	TaskTypes  []string `json:"task_types,omitempty"`
}

// ChangeSet is a line-addressed diff between two versions of the routing
// document. Original and proposed content always have identical line counts;
// the differing line indices must equal the ModifiedLines exactly.
type ChangeSet struct {
	Path            string         `json:"path"`
	ResolvedPath    string         `json:"resolved_path,omitempty"`
	OriginalContent string         `json:"original_content"`
	ProposedContent string         `json:"proposed_content"`
	ModifiedLines   []ModifiedLine `json:"modified_lines"`
}

// LineFor returns the modified line entry addressing lineNumber, if present.
func (cs *ChangeSet) LineFor(lineNumber int) (ModifiedLine, bool) {
	for _, ml := range cs.ModifiedLines {
		if ml.LineNumber == lineNumber {
			return ml, true
		}
	}
	return ModifiedLine{}, false
}
