package main

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultOwner = "default"

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a document to the knowledge base",
	Long: `Add a document to the knowledge base.

Examples:
  aigist add --text "The sky is blue because of Rayleigh scattering."
  aigist add --file ./notes.pdf --title "Meeting notes"
  aigist add --url https://example.com/article`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		fetchURL, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		owner, _ := cmd.Flags().GetString("owner")

		if text == "" && fetchURL == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		req := map[string]any{
			"owner": owner,
		}
		if title != "" {
			req["title"] = title
		}

		switch {
		case text != "":
			req["type"] = "text"
			req["content"] = text
		case fetchURL != "":
			req["type"] = "url"
			req["url"] = fetchURL
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			req["type"] = "file"
			req["content"] = base64.StdEncoding.EncodeToString(data)
			req["filename"] = filepath.Base(file)
			if title == "" {
				req["title"] = filepath.Base(file)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/documents", req)
		if err != nil {
			return err
		}

		var result struct {
			DocumentID string   `json:"document_id"`
			Chunks     int      `json:"chunks"`
			Failed     int      `json:"failed_chunks"`
			Evicted    []string `json:"evicted"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Stored document %s (%d chunks)", result.DocumentID, result.Chunks)
		if result.Failed > 0 {
			printWarning("%d chunks could not be embedded", result.Failed)
		}
		for _, id := range result.Evicted {
			printWarning("Evicted old document %s", id)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().String("text", "", "text content to add")
	addCmd.Flags().String("url", "", "URL to fetch and add")
	addCmd.Flags().String("file", "", "file path to add (.txt, .md, or .pdf)")
	addCmd.Flags().String("title", "", "title for the document")
	addCmd.Flags().String("owner", defaultOwner, "owner key for the document")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question grounded in your documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		owner, _ := cmd.Flags().GetString("owner")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/questions", map[string]any{
			"owner":    owner,
			"question": question,
		})
		if err != nil {
			return err
		}

		var result struct {
			Answer string `json:"answer"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		return nil
	},
}

func init() {
	askCmd.Flags().String("owner", defaultOwner, "owner key to search")
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage stored documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents?owner="+url.QueryEscape(owner))
		if err != nil {
			return err
		}

		var result struct {
			Documents []struct {
				ID         string `json:"id"`
				Title      string `json:"title"`
				ChunkCount int    `json:"chunk_count"`
				CreatedAt  string `json:"created_at"`
			} `json:"documents"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Documents) == 0 {
			fmt.Println("No documents stored.")
			return nil
		}

		for _, d := range result.Documents {
			title := d.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %s (%d chunks)\n",
				colorize(colorCyan, d.ID[:8]),
				d.CreatedAt,
				title,
				d.ChunkCount,
			)
		}
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/documents/"+args[0])
		if err != nil {
			return err
		}

		var result struct {
			Deleted       string `json:"deleted"`
			ChunksRemoved int    `json:"chunks_removed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted document %s (%d chunks removed)", result.Deleted, result.ChunksRemoved)
		return nil
	},
}

func init() {
	docsListCmd.Flags().String("owner", defaultOwner, "owner key to list")
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)
}

// --- summarize ---

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize text or a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		level, _ := cmd.Flags().GetString("level")

		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/summaries", map[string]any{
			"text":  text,
			"level": level,
		})
		if err != nil {
			return err
		}

		var result struct {
			Summary string `json:"summary"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Summary)
		return nil
	},
}

func init() {
	summarizeCmd.Flags().String("text", "", "text to summarize")
	summarizeCmd.Flags().String("file", "", "file to summarize")
	summarizeCmd.Flags().String("level", "standard", "detail level: quick, standard, or detailed")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var stats struct {
			Count       int    `json:"count"`
			Dimension   int    `json:"dimension"`
			MemoryBytes uint64 `json:"memory_bytes"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Chunks", "%d", stats.Count)
		printStatus("Dimension", "%d", stats.Dimension)
		printStatus("Memory", "%.1f KiB", float64(stats.MemoryBytes)/1024)
		return nil
	},
}
