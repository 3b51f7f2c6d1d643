package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRunID generates a unique analysis run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// ReportFileName returns the file name of the PDF report posted to chat
func ReportFileName(at time.Time) string {
	return fmt.Sprintf("analysis_report_%d.pdf", at.Unix())
}
