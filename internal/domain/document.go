package domain

import (
	"fmt"
	"time"
)

// Document records one index call: the source file name, where its units were
// scoped and how many of each kind made it into both tiers.
type Document struct {
	ID         string
	UserID     string
	SessionID  string
	Filename   string
	TextCount  int
	TableCount int
	ImageCount int
	SizeBytes  int64
	UnitIDs    []string
	UploadedAt time.Time
}

// NewDocument builds the record for an index report.
func NewDocument(id, userID, sessionID, filename string, sizeBytes int64, report *IndexReport, uploadedAt time.Time) *Document {
	d := &Document{
		ID:         id,
		UserID:     userID,
		SessionID:  sessionID,
		Filename:   filename,
		SizeBytes:  sizeBytes,
		UploadedAt: uploadedAt,
	}
	if report != nil {
		d.TextCount = report.Counts.Texts
		d.TableCount = report.Counts.Tables
		d.ImageCount = report.Counts.Images
		d.UnitIDs = append([]string(nil), report.UnitIDs...)
	}
	return d
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.UserID == "" {
		return fmt.Errorf("document UserID is required")
	}
	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}
	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}
	return nil
}
