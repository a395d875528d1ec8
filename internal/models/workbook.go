// Package models contains domain types for LinkFinder.
package models

import "time"

// LinkRow is one row of the Links sheet.
type LinkRow struct {
	Link        string `json:"link" msgpack:"link"`
	Stage       string `json:"stage" msgpack:"stage"`
	Participant string `json:"participant" msgpack:"participant"`
}

// FileEntry is one row of the Filename sheet. It is associated with a
// LinkRow by exact (Stage, Participant) equality at query time.
type FileEntry struct {
	Stage       string `json:"stage" msgpack:"stage"`
	Participant string `json:"participant" msgpack:"participant"`
	Filename    string `json:"filename" msgpack:"filename"`
}

// Workbook holds the three collections decoded from one spreadsheet file.
// A Workbook is never mutated after it is built; a reload swaps the value.
type Workbook struct {
	Name      string      `json:"name"`
	FileID    string      `json:"fileId,omitempty"`
	LoadedAt  time.Time   `json:"loadedAt"`
	Links     []LinkRow   `json:"links"`
	Buildings []string    `json:"buildings"`
	Files     []FileEntry `json:"files"`
}

// HasBuilding reports whether name is in the Buildings allow-list.
func (w *Workbook) HasBuilding(name string) bool {
	for _, b := range w.Buildings {
		if b == name {
			return true
		}
	}
	return false
}

// WorkbookSummary is the lightweight description of a loaded workbook.
type WorkbookSummary struct {
	Name          string    `json:"name"`
	FileID        string    `json:"fileId,omitempty"`
	LoadedAt      time.Time `json:"loadedAt"`
	LinkCount     int       `json:"linkCount"`
	BuildingCount int       `json:"buildingCount"`
	FileCount     int       `json:"fileCount"`
}

// Summary returns the summary of w.
func (w *Workbook) Summary() *WorkbookSummary {
	return &WorkbookSummary{
		Name:          w.Name,
		FileID:        w.FileID,
		LoadedAt:      w.LoadedAt,
		LinkCount:     len(w.Links),
		BuildingCount: len(w.Buildings),
		FileCount:     len(w.Files),
	}
}
