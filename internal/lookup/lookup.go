// Package lookup filters workbook rows and renders actionable result items.
package lookup

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/linkfinder/backend/internal/models"
)

// BuildingMode selects how the building selector affects results.
type BuildingMode string

const (
	// BuildingGate empties the result when the selected building is not in
	// the Buildings collection.
	BuildingGate BuildingMode = "gate"
	// BuildingPath never filters; the building only feeds link targets.
	BuildingPath BuildingMode = "path"
)

// RenderMode selects the shape of rendered items.
type RenderMode string

const (
	// RenderLinks renders one "open link" item per row, targeting link/building.
	RenderLinks RenderMode = "links"
	// RenderFiles joins the Filename sheet and renders one item per file.
	RenderFiles RenderMode = "files"
)

// Placeholder labels.
const (
	NoResultsLabel = "No results found."
	NoFilesLabel   = "No files found"
)

// DefaultSeparator joins the local root and a filename.
const DefaultSeparator = `\`

// Settings picks the lookup behaviour.
type Settings struct {
	BuildingMode  BuildingMode
	RenderMode    RenderMode
	PathSeparator string
}

// DefaultSettings returns the behaviour of the latest revision.
func DefaultSettings() Settings {
	return Settings{
		BuildingMode:  BuildingPath,
		RenderMode:    RenderFiles,
		PathSeparator: DefaultSeparator,
	}
}

// ParseSettings validates textual settings, filling blanks with defaults.
func ParseSettings(buildingMode, renderMode, separator string) (Settings, error) {
	s := DefaultSettings()
	switch BuildingMode(strings.ToLower(buildingMode)) {
	case "":
	case BuildingGate:
		s.BuildingMode = BuildingGate
	case BuildingPath:
		s.BuildingMode = BuildingPath
	default:
		return s, fmt.Errorf("invalid building mode: %s (must be gate or path)", buildingMode)
	}
	switch RenderMode(strings.ToLower(renderMode)) {
	case "":
	case RenderLinks:
		s.RenderMode = RenderLinks
	case RenderFiles:
		s.RenderMode = RenderFiles
	default:
		return s, fmt.Errorf("invalid render mode: %s (must be links or files)", renderMode)
	}
	if separator != "" {
		s.PathSeparator = separator
	}
	return s, nil
}

// BuildOptions derives the three dropdown sources. Stages and participants
// are distinct, non-empty and sorted; buildings keep workbook order.
func BuildOptions(wb *models.Workbook) models.Options {
	opts := models.Options{
		Stages:       []string{},
		Participants: []string{},
		Buildings:    []string{},
	}
	if wb == nil {
		return opts
	}

	stages := make(map[string]struct{})
	participants := make(map[string]struct{})
	for _, row := range wb.Links {
		if row.Stage != "" {
			stages[row.Stage] = struct{}{}
		}
		if row.Participant != "" {
			participants[row.Participant] = struct{}{}
		}
	}
	opts.Stages = sortedKeys(stages)
	opts.Participants = sortedKeys(participants)
	opts.Buildings = append(opts.Buildings, wb.Buildings...)
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Query returns the rows surviving the active filters, in workbook order.
func Query(wb *models.Workbook, f models.Filter, s Settings) []models.LinkRow {
	if wb == nil {
		return nil
	}
	if s.BuildingMode == BuildingGate && f.Building != "" && !wb.HasBuilding(f.Building) {
		return nil
	}

	var out []models.LinkRow
	for _, row := range wb.Links {
		if f.Stage != "" && row.Stage != f.Stage {
			continue
		}
		if f.Participant != "" && row.Participant != f.Participant {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Render computes the result items for the current filter. localRoot may be
// empty, in which case file items open URLs instead of copying paths.
func Render(wb *models.Workbook, f models.Filter, localRoot string, s Settings) []models.ResultItem {
	rows := Query(wb, f, s)
	if len(rows) == 0 {
		return []models.ResultItem{placeholder(NoResultsLabel)}
	}

	var items []models.ResultItem
	for _, row := range rows {
		switch s.RenderMode {
		case RenderLinks:
			items = append(items, linkItem(row, f.Building))
		default:
			items = append(items, fileItems(wb, row, localRoot, s.PathSeparator)...)
		}
	}
	return items
}

func linkItem(row models.LinkRow, building string) models.ResultItem {
	item := models.ResultItem{
		Label:       label(row),
		Stage:       row.Stage,
		Participant: row.Participant,
		Building:    building,
		Action:      models.ActionOpenURL,
	}
	if building == "" {
		item.Disabled = true
		return item
	}
	item.Target = JoinURL(row.Link, building)
	return item
}

func fileItems(wb *models.Workbook, row models.LinkRow, localRoot, sep string) []models.ResultItem {
	var items []models.ResultItem
	for _, fe := range wb.Files {
		if fe.Stage != row.Stage || fe.Participant != row.Participant {
			continue
		}
		item := models.ResultItem{
			Label:       label(row),
			Stage:       row.Stage,
			Participant: row.Participant,
			Filename:    fe.Filename,
			Action:      models.ActionOpenURL,
			Target:      JoinURL(row.Link, EncodeURIComponent(fe.Filename)),
		}
		if localRoot != "" {
			item.Action = models.ActionCopyPath
			item.Target = JoinLocalPath(localRoot, fe.Filename, sep)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		p := placeholder(NoFilesLabel)
		p.Stage = row.Stage
		p.Participant = row.Participant
		items = append(items, p)
	}
	return items
}

func label(row models.LinkRow) string {
	return row.Stage + " - " + row.Participant
}

func placeholder(text string) models.ResultItem {
	return models.ResultItem{
		Label:       text,
		Action:      models.ActionNone,
		Disabled:    true,
		Placeholder: true,
	}
}

// JoinURL appends segment to base, dropping one trailing slash from base.
func JoinURL(base, segment string) string {
	base = strings.TrimSuffix(base, "/")
	return base + "/" + segment
}

// JoinLocalPath joins root and filename with sep, ignoring any trailing
// slashes or backslashes on root.
func JoinLocalPath(root, filename, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	root = strings.TrimRight(root, `/\`)
	return root + sep + filename
}

// EncodeURIComponent escapes s like the JavaScript function of that name:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return uriComponentFixups.Replace(escaped)
}

var uriComponentFixups = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
