package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cverag/internal/cve"
)

var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "List the CVE identifiers cited in text or a file",
	Long:  `Prints every distinct CVE identifier in order of first appearance. Reads the argument, the --file report, or stdin.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		for _, id := range cve.Extract(text) {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup [CVE-ID...]",
	Short: "Look up CVE identifiers in the local corpus",
	Long:  `Reads each identifier's record from the corpus and prints its vendor, product and description. Identifiers may also be cited in --file or stdin.`,
	RunE:  runLookup,
}

func init() {
	for _, c := range []*cobra.Command{extractCmd, lookupCmd} {
		c.Flags().StringP("file", "f", "", "report to read identifiers from (.txt, .md or .pdf)")
	}
	lookupCmd.Flags().Bool("json", false, "output records as JSON")
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	text, err := inputText(cmd, []string{strings.Join(args, " ")})
	if err != nil {
		return err
	}
	ids := cve.Extract(text)
	if len(ids) == 0 {
		return fmt.Errorf("no CVE identifiers given")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	corpus := cve.NewCorpus(cfg.Corpus.Root, cve.CorpusOptions{MaxConcurrency: cfg.Corpus.MaxConcurrency})

	res, err := corpus.Lookup(ctx, ids)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, d := range res.Descriptions {
		fmt.Fprintln(out, strings.TrimSuffix(d, " "+cve.EndMarker))
	}
	return nil
}

// inputText returns the --file text, the first argument, or stdin, in that
// order of preference.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		return readUpload(path)
	}
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no input: pass text or --file, or pipe a report to stdin")
	}
	return string(data), nil
}
