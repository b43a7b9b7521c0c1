package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
)

// ValidationResult is the JSON output of validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
	Path     string   `json:"path,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a flow document",
		Long: `Parse a flow document the way import does and report the first
structural error. Edges that a live editor would refuse are listed as
warnings. Use "-" to read from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

var errInvalidFlow = errors.New("flow document is invalid")

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read flow document: %w", err)
	}

	res := ValidationResult{Valid: true}
	doc, err := flow.FromDocument(data, nodes.Default())
	if err != nil {
		res.Valid = false
		res.Error = err.Error()
		var pe *flow.ParseError
		if errors.As(err, &pe) {
			res.Path = pe.Path
		}
	} else {
		res.Nodes, res.Edges = len(doc.Nodes), len(doc.Edges)
		res.Warnings = edgeWarnings(doc)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		if res.Valid {
			fmt.Fprintf(out, "✓ %s: %d nodes, %d edges\n", path, res.Nodes, res.Edges)
		} else {
			fmt.Fprintf(out, "✗ %s: %s\n", path, res.Error)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}

	if !res.Valid {
		return errInvalidFlow
	}
	return nil
}

// edgeWarnings replays the edges in document order through the connection
// rules and reports the ones an editor would have refused.
func edgeWarnings(doc flow.Document) []string {
	var warnings []string
	for i, e := range doc.Edges {
		err := flow.ValidateConnection(doc.Nodes, doc.Edges[:i], flow.Connection{
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		})
		var ce *flow.ConnectionError
		if errors.As(err, &ce) {
			warnings = append(warnings, fmt.Sprintf("edge %s (%s -> %s): %s", e.ID, e.Source, e.Target, ce.Reason))
		}
	}
	return warnings
}
