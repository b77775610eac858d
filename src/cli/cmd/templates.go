package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sofmeright/buildfreight/src/output"
	"github.com/sofmeright/buildfreight/src/render"
	"github.com/sofmeright/buildfreight/src/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List stored templates and the build types using them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := templates.NewStore(os.DirFS(cfg.TemplatesDir))
		available, err := store.Available()
		if err != nil {
			return err
		}
		color := output.UseColor()
		sec := output.NewSection(cmd.OutOrStdout(), "Templates "+cfg.TemplatesDir, 0, color)
		defer sec.Close()

		for _, name := range render.All() {
			arrangements, ok := available[name]
			if !ok {
				output.RowStatus(sec, name, "no manifest template", "failed", color)
				continue
			}
			if len(arrangements) == 0 {
				output.RowStatus(sec, name, "no pipeline template", "failed", color)
				continue
			}
			versions := make([]string, len(arrangements))
			for i, v := range arrangements {
				versions[i] = fmt.Sprintf("%d", v)
			}
			output.RowStatus(sec, name, "arrangements "+strings.Join(versions, ", "), "success", color)
		}

		var extra []string
		for name := range available {
			if _, err := render.Get(name); err != nil {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			output.RowStatus(sec, name, "no registered build type", "skipped", color)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
