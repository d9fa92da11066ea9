package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	serviceAddr string
	basePath    string
	authToken   string
)

var rootCmd = &cobra.Command{
	Use:   "muninn-cli",
	Short: "A CLI client for the Muninn retrieval service",
	Long:  `A command-line interface for uploading files to the corpus and asking grounded, cited questions over it.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI: %s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serviceAddr, "addr", "http://localhost:8080", "base URL of the retrieval service")
	rootCmd.PersistentFlags().StringVar(&basePath, "base-path", "/api/v1", "API route prefix of the retrieval service")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token, if the service requires auth")
}

func apiURL(path string) string {
	return strings.TrimRight(serviceAddr, "/") + basePath + path
}

// do sends the request with the auth header attached when a token is set.
func do(req *http.Request) (*http.Response, error) {
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return http.DefaultClient.Do(req)
}

// postJSON posts payload to the API path and decodes a 200 response into out.
func postJSON(path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error creating JSON payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
