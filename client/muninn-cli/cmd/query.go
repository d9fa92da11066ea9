package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"Muninn/internal/models"
)

var (
	queryTopK       int
	queryModalities []string
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question over the ingested corpus",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runQuery(args[0])
	},
}

var suggestDocumentID string

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Generate follow-up question suggestions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runSuggest()
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(suggestCmd)
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "number of passages to ground the answer on")
	queryCmd.Flags().StringSliceVar(&queryModalities, "modalities", nil, "restrict retrieval to these modalities (text,image,audio)")
	suggestCmd.Flags().StringVar(&suggestDocumentID, "document", "", "scope suggestions to one document id")
}

func runQuery(question string) {
	payload := models.QueryRequest{
		Question:   question,
		TopK:       queryTopK,
		Modalities: queryModalities,
	}

	var result models.QueryResponse
	if err := postJSON("/query", payload, &result); err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Println(result.Answer)

	if len(result.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range result.Citations {
			line := fmt.Sprintf("  [%d] %s (%s", c.ID, c.Source, c.Type)
			if c.Page != nil {
				line += fmt.Sprintf(", page %d", *c.Page)
			}
			if c.StartTime != nil && c.EndTime != nil {
				line += fmt.Sprintf(", %.1fs-%.1fs", *c.StartTime, *c.EndTime)
			}
			fmt.Println(line + ")")
		}
	}

	fmt.Printf("\nContext used: %d text, %d image, %d audio\n",
		result.ContextUsed.TextChunks, result.ContextUsed.Images, result.ContextUsed.AudioSegments)
	if len(result.UnresolvedMarkers) > 0 {
		fmt.Printf("Unresolved markers: %v\n", result.UnresolvedMarkers)
	}
}

func runSuggest() {
	payload := models.SuggestRequest{DocumentID: suggestDocumentID}

	var result models.SuggestResponse
	if err := postJSON("/suggestions", payload, &result); err != nil {
		log.Fatalf("Suggest failed: %v", err)
	}

	if len(result.Suggestions) == 0 {
		fmt.Println("No suggestions available.")
		return
	}
	for i, s := range result.Suggestions {
		fmt.Printf("%d. %s\n", i+1, s)
	}
}
