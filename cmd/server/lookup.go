package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/linkfinder/backend/internal/config"
	"github.com/linkfinder/backend/internal/lookup"
	"github.com/linkfinder/backend/internal/models"
	"github.com/linkfinder/backend/internal/parser"
	"github.com/linkfinder/backend/internal/prefs"
	"github.com/spf13/cobra"
)

var (
	lookupStage        string
	lookupParticipant  string
	lookupBuilding     string
	lookupRoot         string
	lookupBuildingMode string
	lookupRenderMode   string
	lookupSeparator    string
	lookupJSON         bool
	lookupCopy         bool

	optionsJSON bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <workbook>",
	Short: "Filter a workbook and print the resulting links or paths",
	Long: `Loads the workbook, applies the stage, participant and building
filters and prints one line per result item.

Without --root the persisted local root is used; pass --root "" to
ignore it. --copy puts the first copyable local path on the clipboard.`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

var optionsCmd = &cobra.Command{
	Use:   "options <workbook>",
	Short: "Print the stage, participant and building choices of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runOptions,
}

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

func init() {
	f := lookupCmd.Flags()
	f.StringVar(&lookupStage, "stage", "", "stage filter")
	f.StringVar(&lookupParticipant, "participant", "", "participant filter")
	f.StringVar(&lookupBuilding, "building", "", "selected building")
	f.StringVar(&lookupRoot, "root", "", "local root for copyable paths")
	f.StringVar(&lookupBuildingMode, "building-mode", "", "gate or path (default from config)")
	f.StringVar(&lookupRenderMode, "render-mode", "", "links or files (default from config)")
	f.StringVar(&lookupSeparator, "separator", "", "local path separator (default from config)")
	f.BoolVar(&lookupJSON, "json", false, "print JSON")
	f.BoolVar(&lookupCopy, "copy", false, "copy the first local path to the clipboard")

	optionsCmd.Flags().BoolVar(&optionsJSON, "json", false, "print JSON")
}

func loadWorkbook(path string) (*models.Workbook, error) {
	layout, err := config.LoadLayout(cfg.Lookup.LayoutFile)
	if err != nil {
		return nil, err
	}
	return parser.NewLoader(nil, layout, logger.Named("parser")).LoadFile(path, filepath.Base(path))
}

func lookupSettings() (lookup.Settings, error) {
	pick := func(flag, fallback string) string {
		if flag != "" {
			return flag
		}
		return fallback
	}
	return lookup.ParseSettings(
		pick(lookupBuildingMode, cfg.Lookup.BuildingMode),
		pick(lookupRenderMode, cfg.Lookup.RenderMode),
		pick(lookupSeparator, cfg.Lookup.PathSeparator),
	)
}

func runLookup(cmd *cobra.Command, args []string) error {
	wb, err := loadWorkbook(args[0])
	if err != nil {
		return err
	}

	settings, err := lookupSettings()
	if err != nil {
		return err
	}

	root := lookupRoot
	if !cmd.Flags().Changed("root") {
		if root, err = persistedRoot(cmd); err != nil {
			return err
		}
	}

	filter := models.Filter{
		Stage:       lookupStage,
		Participant: lookupParticipant,
		Building:    lookupBuilding,
	}
	items := lookup.Render(wb, filter, root, settings)

	out := cmd.OutOrStdout()
	if lookupJSON {
		if err := writeJSON(out, items); err != nil {
			return err
		}
	} else {
		printItems(out, items)
	}

	if lookupCopy {
		return copyFirstPath(out, items)
	}
	return nil
}

func persistedRoot(cmd *cobra.Command) (string, error) {
	store, err := openPrefs()
	if err != nil {
		return "", fmt.Errorf("failed to open preferences: %w", err)
	}
	defer store.Close()
	return prefs.LocalRoot(cmd.Context(), store)
}

func printItems(w io.Writer, items []models.ResultItem) {
	for _, it := range items {
		switch {
		case it.Placeholder:
			fmt.Fprintln(w, it.Label)
		case it.Disabled:
			fmt.Fprintf(w, "%s\t(select a building)\n", it.Label)
		case it.Filename != "":
			fmt.Fprintf(w, "%s\t%s\t%s\n", it.Label, it.Filename, it.Target)
		default:
			fmt.Fprintf(w, "%s\t%s\n", it.Label, it.Target)
		}
	}
}

func copyFirstPath(w io.Writer, items []models.ResultItem) error {
	for _, it := range items {
		if it.Action != models.ActionCopyPath {
			continue
		}
		if err := clipboardWriteAll(it.Target); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
		fmt.Fprintf(w, "copied %s\n", it.Target)
		return nil
	}
	return errors.New("no local path to copy (set a local root with --root or `linkfinder root set`)")
}

func runOptions(cmd *cobra.Command, args []string) error {
	wb, err := loadWorkbook(args[0])
	if err != nil {
		return err
	}
	opts := lookup.BuildOptions(wb)

	out := cmd.OutOrStdout()
	if optionsJSON {
		return writeJSON(out, opts)
	}
	fmt.Fprintf(out, "Stages:       %s\n", strings.Join(opts.Stages, ", "))
	fmt.Fprintf(out, "Participants: %s\n", strings.Join(opts.Participants, ", "))
	fmt.Fprintf(out, "Buildings:    %s\n", strings.Join(opts.Buildings, ", "))
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
