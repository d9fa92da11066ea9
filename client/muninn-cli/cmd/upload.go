package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"Muninn/internal/models"
)

var uploadPattern string

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload a file or directory to the retrieval service",
	Long:  `Uploads a single file, or walks a directory and uploads every supported file matching --pattern. The file's creation time is attached as its source date.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		uploadPath(args[0])
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadPattern, "pattern", "*", "glob filter for directory uploads, matched against file names")
}

func uploadPath(path string) {
	info, err := os.Stat(path)
	if err != nil {
		log.Fatalf("Cannot stat %s: %v", path, err)
	}

	if !info.IsDir() {
		if err := uploadFile(path); err != nil {
			log.Fatalf("Failed to upload %s: %v", path, err)
		}
		return
	}

	matcher, err := glob.Compile(uploadPattern)
	if err != nil {
		log.Fatalf("Invalid pattern %q: %v", uploadPattern, err)
	}

	var uploaded, skipped, failed int
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matcher.Match(d.Name()) {
			return nil
		}
		if modalityForFile(p) == "" {
			skipped++
			return nil
		}
		if uerr := uploadFile(p); uerr != nil {
			fmt.Printf("Failed to upload %s: %v\n", p, uerr)
			failed++
			return nil
		}
		uploaded++
		return nil
	})
	if err != nil {
		log.Fatalf("Walk failed: %v", err)
	}

	fmt.Printf("Uploaded %d file(s), skipped %d unsupported, %d failed.\n", uploaded, skipped, failed)
}

func uploadFile(path string) error {
	modality := modalityForFile(path)
	if modality == "" {
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if date := sourceDate(path); date != "" {
		if err := writer.WriteField("source_date", date); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, apiURL("/upload/"+modality), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("service returned status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var doc models.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	fmt.Printf("Uploaded %s (%s) -> document %s\n", filepath.Base(path), doc.Modality, doc.ID)
	return nil
}

// modalityForFile maps a file extension to its upload endpoint. Empty means
// the service would reject the file, so the walk skips it.
func modalityForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".txt", ".md", ".xlsx", ".html", ".htm":
		return "document"
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return "image"
	case ".mp3", ".wav", ".m4a", ".flac", ".ogg":
		return "audio"
	default:
		return ""
	}
}

// sourceDate reads the file's birth time where the platform records one,
// falling back to the modification time.
func sourceDate(path string) string {
	t, err := times.Stat(path)
	if err != nil {
		return ""
	}
	if t.HasBirthTime() {
		return t.BirthTime().UTC().Format(time.RFC3339)
	}
	return t.ModTime().UTC().Format(time.RFC3339)
}
