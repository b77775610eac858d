package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/buildfreight/src/config"
	"github.com/sofmeright/buildfreight/src/leakcheck"
	"github.com/sofmeright/buildfreight/src/output"
	"github.com/sofmeright/buildfreight/src/params"
	"github.com/sofmeright/buildfreight/src/pipeline"
	"github.com/sofmeright/buildfreight/src/render"
	"github.com/sofmeright/buildfreight/src/repo"
	"github.com/sofmeright/buildfreight/src/templates"
)

var (
	renderBuildType string
	renderRepoDir   string
	renderPlainDir  bool
	renderOutDir    string
	renderWorkers   bool
	renderQuiet     bool
)

var renderCmd = &cobra.Command{
	Use:   "render <params-file>",
	Short: "Render a build manifest",
	Long: `Render user parameters into a cluster build manifest.

The parameter file is a JSON or YAML object ("-" reads stdin). Site
parameters from the config file are merged underneath it. With --repo the
build metadata (container.yaml, Dockerfile, additional tags) is read from
a git checkout at the requested git_ref, or from a plain directory with
--plain.

Manifests are printed to stdout unless --out-dir is given, in which case
each is written to <out-dir>/<name>.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderBuildType, "build-type", "t", "", "build type (default from config)")
	renderCmd.Flags().StringVar(&renderRepoDir, "repo", "", "repository to read build metadata from")
	renderCmd.Flags().BoolVar(&renderPlainDir, "plain", false, "read --repo as a plain directory, not a git repository")
	renderCmd.Flags().StringVarP(&renderOutDir, "out-dir", "o", "", "write manifests into this directory")
	renderCmd.Flags().BoolVar(&renderWorkers, "workers", false, "also render one worker build per platform")
	renderCmd.Flags().BoolVarP(&renderQuiet, "quiet", "q", false, "suppress the render summary")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()
	color := output.UseColor()
	summary := cmd.ErrOrStderr()
	if renderQuiet {
		summary = io.Discard
	}

	buildType := renderBuildType
	if buildType == "" {
		buildType = cfg.BuildType
	}
	bt, err := render.Get(buildType)
	if err != nil {
		return err
	}
	if renderWorkers && bt.Name != render.Orchestrator {
		return fmt.Errorf("--workers needs the %s build type, got %s", render.Orchestrator, bt.Name)
	}

	p, err := loadParams(args[0], bt.ParamsKind)
	if err != nil {
		var verr *params.ValidationError
		if errors.As(err, &verr) {
			sec := output.NewSection(summary, "Parameters", 0, color)
			output.IssueList(sec, verr.Issues, color)
			sec.Close()
		}
		return err
	}

	info, err := loadRepo(ctx, p)
	if err != nil {
		return err
	}

	engine := render.New(templates.NewStore(os.DirFS(cfg.TemplatesDir)), logger)
	if cfg.LeakScan {
		engine.LeakChecker = leakcheck.New()
	}

	req := render.Request{BuildType: bt.Name, Params: p, Repo: info}
	res, err := engine.Render(ctx, req)
	if err != nil {
		var verr *params.ValidationError
		if errors.As(err, &verr) {
			sec := output.NewSection(summary, "Parameters", 0, color)
			output.IssueList(sec, verr.Issues, color)
			sec.Close()
		}
		output.Fail(summary, err.Error(), color)
		return err
	}
	results := []*render.Result{res}

	if renderWorkers {
		var platforms []string
		if info != nil && info.Configuration != nil {
			platforms = info.Configuration.FilterPlatforms(p.Strings(params.Platforms))
		} else {
			platforms = p.Strings(params.Platforms)
		}
		workers, err := engine.RenderWorkers(ctx, req, platforms, cfg.WorkerConcurrency)
		if err != nil {
			output.Fail(summary, err.Error(), color)
			return err
		}
		for _, platform := range sortedPlatforms(workers) {
			results = append(results, workers[platform])
		}
	}

	for _, r := range results {
		id := output.SectionID("render", r.Manifest.Name())
		output.SectionStart(summary, id, "Rendered "+r.Manifest.Name(), len(results) > 1)
		printResult(summary, r, color)
		output.SectionEnd(summary, id)
	}
	if info != nil && len(info.Warnings) > 0 {
		sec := output.NewSection(summary, "Repository", 0, color)
		output.WarningList(sec, info.Warnings, color)
		sec.Close()
	}

	if err := emit(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	fmt.Fprintln(summary)
	output.SummaryTotal(summary, len(results), 0, time.Since(start), color)
	return nil
}

// loadParams reads the user parameters, merges the site parameters under
// them and populates a set of the given kind.
func loadParams(path string, kind *params.Kind) (*params.Set, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	user, err := decodeParams(data)
	if err != nil {
		return nil, err
	}

	merged := cfg.Params(user)
	if _, ok := merged[params.ArrangementVersion]; !ok {
		merged[params.ArrangementVersion] = cfg.ArrangementVersion
	}

	p := kind.New()
	if err := p.SetParams(merged); err != nil {
		return nil, err
	}
	if v, ok := p.Int(params.ArrangementVersion); ok {
		if err := config.CheckArrangement(v); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// loadRepo reads build metadata from --repo. Without it the render uses
// the default repository configuration.
func loadRepo(ctx context.Context, p *params.Set) (*repo.Info, error) {
	if renderRepoDir == "" {
		return nil, nil
	}
	uri, ref, branch := p.String(params.GitURI), p.String(params.GitRef), p.String(params.GitBranch)
	if renderPlainDir {
		return repo.LoadDir(renderRepoDir, uri, ref, branch)
	}
	return repo.Load(ctx, renderRepoDir, uri, ref, branch)
}

func printResult(w io.Writer, res *render.Result, color bool) {
	m := res.Manifest
	_, builder := m.BuilderImage()
	output.ContextBlock(w, []output.KV{
		{Key: "name", Value: m.Name()},
		{Key: "kind", Value: m.Kind()},
		{Key: "output", Value: m.OutputTag()},
		{Key: "builder", Value: builder},
	})

	sec := output.NewSection(w, "Pipeline", 0, color)
	output.PipelineTable(sec, pipelineRows(res.Pipeline), color)
	sec.Close()

	if labels := m.Labels(); len(labels) > 0 {
		sec = output.NewSection(w, "Labels", 0, color)
		output.LabelTable(sec, labels, color)
		sec.Close()
	}
}

func pipelineRows(p *pipeline.Template) []output.PhaseRow {
	phases := p.Phases()
	rows := make([]output.PhaseRow, 0, len(phases))
	for _, phase := range phases {
		rows = append(rows, output.PhaseRow{Phase: phase, Plugins: p.PluginNames(phase)})
	}
	return rows
}

// emit writes each manifest to the output directory, or to w as indented
// JSON documents.
func emit(w io.Writer, results []*render.Result) error {
	for _, r := range results {
		data, err := json.MarshalIndent(r.Manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", r.Manifest.Name(), err)
		}
		data = append(data, '\n')
		if renderOutDir == "" {
			if _, err := w.Write(data); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(renderOutDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", renderOutDir, err)
		}
		path := filepath.Join(renderOutDir, r.Manifest.Name()+".json")
		if err := writeFile(path, data); err != nil {
			return err
		}
		logger.WithField("path", path).Info("wrote manifest")
	}
	return nil
}

func sortedPlatforms(m map[string]*render.Result) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
