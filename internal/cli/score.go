package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"credit-risk/backend/internal/features"
	"credit-risk/backend/internal/model"
	"credit-risk/backend/internal/scoring"
)

// ScoreResult is the offline scoring output.
type ScoreResult struct {
	RiskScore float64  `json:"risk_score" yaml:"risk_score"`
	Tier      int      `json:"tier" yaml:"tier"`
	Missing   []string `json:"missing_features,omitempty" yaml:"missing_features,omitempty"`
}

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	var featuresPath string

	cmd := &cobra.Command{
		Use:   "score <artifact>",
		Short: "Score one request document offline",
		Long: `Score a {"features": {...}} document with the given artifact.
Use --features - to read the document from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readDocument(cmd.InOrStdin(), featuresPath)
			if err != nil {
				return err
			}
			res, err := scoreDocument(args[0], body)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, res)
		},
	}

	cmd.Flags().StringVar(&featuresPath, "features", "-", "request document path, or - for stdin")
	return cmd
}

func readDocument(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	return body, nil
}

func scoreDocument(artifactPath string, body []byte) (ScoreResult, error) {
	doc, err := features.ParseDocument(body)
	if err != nil {
		return ScoreResult{}, err
	}
	rec, err := features.Assemble(doc.Features)
	if err != nil {
		return ScoreResult{}, err
	}
	p, err := model.Load(artifactPath)
	if err != nil {
		return ScoreResult{}, err
	}
	proba, err := p.PredictProba([]features.Record{rec})
	if err != nil {
		return ScoreResult{}, err
	}
	if len(proba) != 1 || len(proba[0]) < 2 {
		return ScoreResult{}, errors.New("model returned no positive-class probability")
	}
	score := proba[0][1]
	return ScoreResult{
		RiskScore: score,
		Tier:      scoring.TierFor(score),
		Missing:   rec.MissingColumns(),
	}, nil
}
