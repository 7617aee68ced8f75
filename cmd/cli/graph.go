package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/notegraph/pkg/types"
)

var (
	userID    string
	inputFile string
	inputText string
	outFormat string
)

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Write an extraction JSON document into a user's graph",
	Long: `Read an extraction (concepts, relationships, tags, summary) from a file or
stdin and reconcile it with the user's graph. The written nodes and edges are
printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, inputFile)
		if err != nil {
			return err
		}
		ex, err := types.DecodeExtraction(data)
		if err != nil {
			return err
		}

		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.client.Materialize(cmd.Context(), userID, ex)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outFormat, res)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract concepts from text and write them into a user's graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := inputText
		if text == "" {
			data, err := readInput(cmd, inputFile)
			if err != nil {
				return err
			}
			text = string(data)
		}

		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.client.Analyze(cmd.Context(), userID, text)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outFormat, res)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print a user's whole graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		graph, err := a.client.GetUserGraph(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outFormat, graph)
	},
}

func init() {
	for _, c := range []*cobra.Command{materializeCmd, analyzeCmd, exportCmd} {
		c.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
		c.Flags().StringVarP(&outFormat, "format", "o", "json", "output format (json, yaml)")
		_ = c.MarkFlagRequired("user")
		rootCmd.AddCommand(c)
	}
	materializeCmd.Flags().StringVarP(&inputFile, "file", "f", "-", "extraction JSON file, - for stdin")
	analyzeCmd.Flags().StringVarP(&inputFile, "file", "f", "-", "text file, - for stdin")
	analyzeCmd.Flags().StringVarP(&inputText, "text", "t", "", "text to analyze")
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

var errUnknownFormat = errors.New("unknown output format")

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}
