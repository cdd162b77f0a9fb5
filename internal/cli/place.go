package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelgrid/pkg/engine"
	"github.com/matzehuels/labelgrid/pkg/label"
	"github.com/matzehuels/labelgrid/pkg/rtree"
)

// placeInput is the JSON document accepted by the place command.
type placeInput struct {
	Zoom     float64         `json:"zoom"`
	Features []label.Feature `json:"features"`
}

// placeOutput is the JSON document written by the place command.
type placeOutput struct {
	Placements map[string]label.Placement `json:"placements"`
	Committed  int                        `json:"committed"`
	Suppressed int                        `json:"suppressed"`
}

// newPlaceCmd creates the place command for one-shot placement runs.
func newPlaceCmd() *cobra.Command {
	var (
		output      string
		zoom        float64
		candidates  int
		pointGap    float64
		maxFraction float64
	)

	cmd := &cobra.Command{
		Use:   "place <features.json>",
		Short: "Place labels for a feature file",
		Long: `Place reads a JSON feature file, runs a full placement against an
empty index, and writes the placements as JSON. The input file holds a
"features" array and an optional "zoom"; --zoom overrides the file value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var in placeInput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if cmd.Flags().Changed("zoom") {
				in.Zoom = zoom
			}

			prog := newProgress(logger)
			eng := engine.New(label.NewGenerator(label.Config{
				Cap:                candidates,
				PointGap:           pointGap,
				PolygonMaxFraction: maxFraction,
			}), logger)
			idx := rtree.New(rtree.DefaultConfig())

			placements, stats := eng.Place(ctx, "cli", in.Features, idx, in.Zoom)
			prog.done(fmt.Sprintf("Placed %d features: %d committed, %d suppressed",
				stats.Features, stats.Committed, stats.Suppressed))

			out, err := json.MarshalIndent(placeOutput{
				Placements: placements,
				Committed:  stats.Committed,
				Suppressed: stats.Suppressed,
			}, "", "  ")
			if err != nil {
				return err
			}
			out = append(out, '\n')

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().Float64Var(&zoom, "zoom", 0, "zoom level (overrides the file value)")
	cmd.Flags().IntVar(&candidates, "candidates", label.DefaultCandidateCap, "max candidates per feature")
	cmd.Flags().Float64Var(&pointGap, "point-gap", label.DefaultPointGap, "gap between a point and its label box")
	cmd.Flags().Float64Var(&maxFraction, "polygon-max-fraction", label.DefaultPolygonMaxFraction, "max label/bbox fraction for polygon labels")

	return cmd
}
