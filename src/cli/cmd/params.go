package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/buildfreight/src/output"
	"github.com/sofmeright/buildfreight/src/params"
	"github.com/sofmeright/buildfreight/src/render"
)

var paramsBuildType string

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Inspect build parameters",
}

var paramsValidateCmd = &cobra.Command{
	Use:   "validate <params-file>",
	Short: "Validate parameters without rendering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := paramsFromFile(args[0])
		if err == nil {
			err = p.Validate()
		}
		color := output.UseColor()
		sec := output.NewSection(cmd.ErrOrStderr(), "Parameters", 0, color)
		defer sec.Close()

		var verr *params.ValidationError
		if errors.As(err, &verr) {
			output.IssueList(sec, verr.Issues, color)
			return err
		}
		if err != nil {
			return err
		}
		output.RowStatus(sec, p.Kind().Name(), p.String(params.Component), "success", color)
		return nil
	},
}

var paramsSerializeCmd = &cobra.Command{
	Use:   "serialize <params-file>",
	Short: "Print the serialized form handed to worker builds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := paramsFromFile(args[0])
		if err != nil {
			return err
		}
		data, err := p.Serialize()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var paramsDecodeCmd = &cobra.Command{
	Use:   "decode <blob-file>",
	Short: "Decode a serialized parameter blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		p, err := params.Decode(data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "kind: %s\n", p.Kind().Name())
		for _, name := range p.Kind().Names() {
			if p.IsSet(name) {
				fmt.Fprintf(out, "  %s: %v\n", name, p.Get(name))
			}
		}
		return nil
	},
}

func init() {
	paramsCmd.PersistentFlags().StringVarP(&paramsBuildType, "build-type", "t", "", "build type (default from config)")
	paramsCmd.AddCommand(paramsValidateCmd, paramsSerializeCmd, paramsDecodeCmd)
	rootCmd.AddCommand(paramsCmd)
}

func paramsFromFile(path string) (*params.Set, error) {
	buildType := paramsBuildType
	if buildType == "" {
		buildType = cfg.BuildType
	}
	bt, err := render.Get(buildType)
	if err != nil {
		return nil, err
	}
	return loadParams(path, bt.ParamsKind)
}
