package printer

// JobRequest is the pipeline input
type JobRequest struct {
	JobID string
}

// JobResponse is the pipeline output (accumulated across transitions)
type JobResponse struct {
	// From Validate
	ImagePath string

	// From Prepare
	PrintFile string

	// From Submit
	Printer string

	// From Archive
	ArchiveKey string

	// From Complete/Failed
	Status       string
	ErrorMessage string
}

// State names
const (
	StateValidate = "validate"
	StatePrepare  = "prepare"
	StateSubmit   = "submit"
	StateArchive  = "archive"
	StateComplete = "complete"
	StateFailed   = "failed"
)
