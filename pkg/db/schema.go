package db

// Schema defines the SQLite database schema of the camera backend.
// snapshots tracks every file the backend wrote into the image folder so unprinted
// leftovers can be cleaned up; print_jobs mirrors the print pipeline state.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    owner TEXT NOT NULL,
    session TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL CHECK(kind IN ('capture', 'raw', 'camera_raw', 'composite')),
    printed INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshots_owner ON snapshots(owner);
CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);

CREATE TABLE IF NOT EXISTS print_jobs (
    id TEXT PRIMARY KEY,
    image_path TEXT NOT NULL,
    copies INTEGER NOT NULL,
    landscape INTEGER NOT NULL DEFAULT 0,
    printer TEXT,
    cmd_args TEXT,
    status TEXT NOT NULL CHECK(status IN ('pending', 'preparing', 'submitted', 'archived', 'complete', 'failed')),
    print_file TEXT,
    archive_key TEXT,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_print_jobs_status ON print_jobs(status);
CREATE INDEX IF NOT EXISTS idx_print_jobs_created_at ON print_jobs(created_at);
`

// Snapshot kinds
const (
	KindCapture   = "capture"
	KindRaw       = "raw"
	KindCameraRaw = "camera_raw"
	KindComposite = "composite"
)

// Print job status constants
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusSubmitted = "submitted"
	StatusArchived  = "archived"
	StatusComplete  = "complete"
	StatusFailed    = "failed"
)

// TimeLayout is how SQLite CURRENT_TIMESTAMP renders times (UTC).
const TimeLayout = "2006-01-02 15:04:05"

// Snapshot is one file in the image folder, grouped by the artifact that owns it
type Snapshot struct {
	ID        int64
	Path      string
	Owner     string
	Session   string
	Kind      string
	Printed   bool
	CreatedAt string
}

// PrintJob represents a print job record
type PrintJob struct {
	ID           string
	ImagePath    string
	Copies       int
	Landscape    bool
	Printer      string
	CmdArgs      []string
	Status       string
	PrintFile    string
	ArchiveKey   string
	ErrorMessage string
	CreatedAt    string
	UpdatedAt    string
}
