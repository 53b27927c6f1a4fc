package types

import "fmt"

// SizeClass identifies one of the two fixed overlay geometries.
type SizeClass int

const (
	// Small is the 48x48 overlay used on images up to 1024px on either side.
	Small SizeClass = iota
	// Large is the 96x96 overlay used when both dimensions exceed 1024px.
	Large
)

// Geometry returns the logo size and bottom-right margins for the class.
func (s SizeClass) Geometry() (logoSize, marginRight, marginBottom int) {
	if s == Large {
		return 96, 64, 64
	}
	return 48, 32, 32
}

func (s SizeClass) String() string {
	if s == Large {
		return "large"
	}
	return "small"
}

// Region is a rectangle in image pixel coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d@%d,%d", r.W, r.H, r.X, r.Y)
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// FileStatus describes the outcome of processing a single file.
type FileStatus string

const (
	StatusSuccess FileStatus = "success"
	StatusSkipped FileStatus = "skipped"
	StatusFailed  FileStatus = "failed"
)

// FileResult records the per-file outcome of a batch run.
type FileResult struct {
	Input      string     `json:"input"`
	Output     string     `json:"output,omitempty"`
	Status     FileStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Region     Region     `json:"region,omitempty"`
	Class      string     `json:"size_class,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// Summary aggregates the results of a batch run.
type Summary struct {
	GeneratedAt string       `json:"generated_at"`
	Total       int          `json:"total"`
	Successful  int          `json:"successful"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Results     []FileResult `json:"results"`
}

// Add folds a result into the summary counters.
func (s *Summary) Add(r FileResult) {
	s.Results = append(s.Results, r)
	s.Total++
	switch r.Status {
	case StatusSuccess:
		s.Successful++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}
