package model

// HomeworkAssignment belongs to a session. SolutionFile is write-once: a
// student may upload exactly one solution, after which further uploads are
// rejected. SolutionFeedback is free text set by the tutor.
type HomeworkAssignment struct {
	ID               uint64  `json:"id"`
	SessionID        uint64  `json:"session_id"`
	Name             string  `json:"name"`
	Objective        string  `json:"objective"`
	SolutionFile     *string `json:"-"`
	SolutionFeedback *string `json:"solution_feedback"`
	Version          uint32  `json:"-"`
}

// HasSolutionFile reports whether a solution has been uploaded. The file name
// itself is never exposed over the API.
func (h HomeworkAssignment) HasSolutionFile() bool {
	return h.SolutionFile != nil && *h.SolutionFile != ""
}
