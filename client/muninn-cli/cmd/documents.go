package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"Muninn/internal/models"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
}

var (
	listModality string
	listStatus   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		listDocuments()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document, its stored content and its indexed chunks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deleteDocument(args[0])
	},
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(listCmd)
	documentsCmd.AddCommand(deleteCmd)
	listCmd.Flags().StringVar(&listModality, "modality", "", "filter by modality (text, image, audio)")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, processing, completed, failed)")
}

func listDocuments() {
	target := apiURL("/documents")
	q := url.Values{}
	if listModality != "" {
		q.Set("modality", listModality)
	}
	if listStatus != "" {
		q.Set("status", listStatus)
	}
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		log.Fatalf("Error creating request: %v", err)
	}
	resp, err := do(req)
	if err != nil {
		log.Fatalf("Error listing documents: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Failed to list documents, status code: %d", resp.StatusCode)
	}

	var docs []models.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return
	}
	for _, d := range docs {
		fmt.Printf("%s  %-10s  %-5s  %4d chunks  %s\n", d.ID, d.Status, d.Modality, d.ChunkCount, d.Filename)
	}
}

func deleteDocument(id string) {
	req, err := http.NewRequest(http.MethodDelete, apiURL("/documents/"+id), nil)
	if err != nil {
		log.Fatalf("Error creating request: %v", err)
	}
	resp, err := do(req)
	if err != nil {
		log.Fatalf("Error deleting document: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		log.Fatalf("Failed to delete document, status code: %d", resp.StatusCode)
	}
	fmt.Printf("Deleted document %s\n", id)
}
