// Package export renders printable PDF snapshots of ranked lists.
package export

import (
	"errors"
	"time"
)

// Request contains parameters for an export operation.
type Request struct {
	List string
	// At, when non-nil, exports the historic state of the list at
	// that instant instead of the current one.
	At *time.Time
}

// Level is a single row of the exported list.
type Level struct {
	Placement int
	Name      string
	Creator   string
	Verifier  string
	VideoURL  string
	Historic  bool
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates the list state could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
