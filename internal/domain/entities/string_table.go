package entities

// DefaultMinStringLength is the shortest run reported by the string extractor
const DefaultMinStringLength = 4

// StringTable holds printable runs in order of occurrence; duplicates are kept
type StringTable struct {
	ASCII   []string `json:"ascii" yaml:"ascii"`
	Unicode []string `json:"unicode" yaml:"unicode"`

	// Truncated is set when either sequence hit the configured cap
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}
