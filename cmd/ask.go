package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cverag/internal/rag"
	"github.com/ziadkadry99/cverag/internal/upload"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the CVEs in a report",
	Long: `Runs one prompt through the same pipeline the server uses. With the CVE
RAG type (the default) the answer is a JSON array describing or verifying
every identifier cited in the question and the attached file.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringP("file", "f", "", "report to attach (.txt, .md or .pdf)")
	askCmd.Flags().StringP("model", "m", "", "model name from the menu (default model when empty)")
	askCmd.Flags().String("rag-type", rag.TypeCVE, "RAG type")
	askCmd.Flags().Int("chunks", 0, "reference chunks retrieved per unknown CVE")
	askCmd.Flags().Bool("json", false, "print the full result including retrieved chunks")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	model, _ := cmd.Flags().GetString("model")
	ragType, _ := cmd.Flags().GetString("rag-type")
	chunks, _ := cmd.Flags().GetInt("chunks")
	filePath, _ := cmd.Flags().GetString("file")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req := rag.Request{
		Prompt:   args[0],
		Model:    model,
		RAGTypes: []string{ragType},
		Chunks:   chunks,
	}
	if filePath != "" {
		text, err := readUpload(filePath)
		if err != nil {
			return err
		}
		req.Context = text
	}

	a, err := setup(ctx, appOptions{history: true})
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.logger.Sync()

	res, err := a.service.Prompt(ctx, req)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(res.Response))
	return nil
}

// readUpload extracts the text of a local report the same way the server
// handles uploaded files.
func readUpload(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return upload.Read(path, f, 0)
}
