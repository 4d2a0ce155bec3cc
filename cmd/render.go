package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/export"
	"github.com/JakeFAU/popn-score-crawler/internal/render"
)

type renderFlags struct {
	viewer string
	chart  string
}

// newRenderCmd creates the 'render' subcommand, which works offline on an
// exported snapshot.
func newRenderCmd() *cobra.Command {
	var flags renderFlags
	cmd := &cobra.Command{
		Use:   "render SNAPSHOT.json",
		Short: "Renders an exported snapshot",
		Long: `Prints the top-charts table of an exported snapshot and optionally
rebuilds the HTML viewer or draws the top-charts PNG.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenderCommand(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.viewer, "viewer", "", "write the HTML viewer to this path")
	cmd.Flags().StringVar(&flags.chart, "chart", "", "write the top-charts PNG to this path")
	return cmd
}

func runRenderCommand(cmd *cobra.Command, path string, flags renderFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	f, err := os.Open(path) //nolint:gosec // path is the command argument
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	snap, err := export.Read(f)
	if err != nil {
		return err
	}
	appInstance.Logger.Debug("snapshot loaded", zap.String("path", path), zap.Int("songs", len(snap.Scores)))

	fmt.Fprintln(cmd.OutOrStdout(), render.Table(snap))
	if flags.viewer != "" {
		page, err := export.Viewer(snap)
		if err != nil {
			return err
		}
		if err := writeFile(flags.viewer, func(w io.Writer) error {
			_, err := io.WriteString(w, page)
			return err
		}); err != nil {
			return err
		}
	}
	if flags.chart != "" {
		if err := writeFile(flags.chart, func(w io.Writer) error { return render.Chart(w, snap) }); err != nil {
			return err
		}
	}
	return nil
}
