package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/catalog"
	"github.com/hrm8/assistant/internal/tools"
)

var (
	toolsLevel string
	toolsJSON  bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool catalog",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools, optionally only those an access level may call",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "tools.list")
		defer span.End()

		// Definitions only; nothing is run, so no store is needed.
		reg, err := catalog.NewRegistry(nil, nil)
		if err != nil {
			return fmt.Errorf("building tool registry: %w", err)
		}
		var defs []tools.Definition
		for _, name := range reg.Names() {
			def, _ := reg.Get(name)
			defs = append(defs, def)
		}
		if toolsLevel != "" {
			level, err := actor.ParseAccessLevel(toolsLevel)
			if err != nil {
				return err
			}
			defs = filterByLevel(defs, level)
		}
		if toolsJSON {
			return renderToolsJSON(cmd.OutOrStdout(), defs)
		}
		renderTools(cmd.OutOrStdout(), defs)
		return nil
	},
}

func init() {
	toolsListCmd.Flags().StringVar(&toolsLevel, "level", "", "only tools allowed for this access level (e.g. CONSULTANT)")
	toolsListCmd.Flags().BoolVar(&toolsJSON, "json", false, "print JSON")
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}

func filterByLevel(defs []tools.Definition, level actor.AccessLevel) []tools.Definition {
	var out []tools.Definition
	for _, d := range defs {
		if d.Allows(level) {
			out = append(out, d)
		}
	}
	return out
}

func levelNames(levels []actor.AccessLevel) string {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.String()
	}
	return strings.Join(names, ",")
}

func renderTools(w io.Writer, defs []tools.Definition) {
	fmt.Fprintf(w, "Tools (%d):\n\n", len(defs))
	for _, d := range defs {
		fmt.Fprintf(w, "  %-32s %-9s %-16s %s\n", d.Name, d.Sensitivity, d.Category, levelNames(d.AllowedLevels))
	}
}

func renderToolsJSON(w io.Writer, defs []tools.Definition) error {
	type row struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Category    string            `json:"category"`
		Sensitivity tools.Sensitivity `json:"sensitivity"`
		Levels      []string          `json:"allowedLevels"`
	}
	rows := make([]row, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, row{
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Sensitivity: d.Sensitivity,
			Levels:      strings.Split(levelNames(d.AllowedLevels), ","),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
