package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/aigist/aigist/internal/api"
	"github.com/aigist/aigist/internal/chunker"
	"github.com/aigist/aigist/internal/config"
	"github.com/aigist/aigist/internal/crawler"
	"github.com/aigist/aigist/internal/openai"
	"github.com/aigist/aigist/internal/qa"
	"github.com/aigist/aigist/internal/retrieval"
	"github.com/aigist/aigist/internal/storage"
	"github.com/aigist/aigist/internal/summarize"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the aigist server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpEnabled, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpEnabled)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running aigist server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aigist system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "aigist.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(mcpEnabled bool) error {
	fmt.Fprintf(os.Stderr, "aigist version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if cfg.Server.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to double-start: probe the health endpoint before writing a
	// PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("aigist is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the document registry.
	registry, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the retrieval pipeline.
	client := openai.NewClientWithBaseURL(cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel, cfg.OpenAI.ChatModel, cfg.OpenAI.BaseURL)
	vectorsPath := filepath.Join(cfg.Storage.DataDir, "vectors.json")
	vectors, err := retrieval.Open(vectorsPath, retrieval.NewEmbedder(client))
	if err != nil {
		return fmt.Errorf("loading vector store: %w", err)
	}
	slog.Info("vector store loaded", "path", vectorsPath, "chunks", vectors.Count())

	retention := retrieval.NewRetentionManager(vectors, cfg.Retrieval.MaxDocsPerOwner)
	agent := qa.NewAgent(
		chunker.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		vectors,
		retention,
		registry,
		client,
	)
	agent.SetAnswerTuning(cfg.Retrieval.TopK, float32(cfg.Retrieval.MinSimilarity))

	handler := api.NewAppHandler(api.AppDeps{
		Agent:      agent,
		Summarizer: summarize.New(client),
		Crawler:    crawler.New(),
		Registry:   registry,
		Vectors:    vectors,
		Token:      cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Optionally serve MCP tools over stdio alongside HTTP.
	if mcpEnabled {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(agent, vectors))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "aigist listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("aigist is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop aigist (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to aigist (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Embed model", "%s", cfg.OpenAI.EmbedModel)
	printStatus("Chat model", "%s", cfg.OpenAI.ChatModel)

	if running {
		req, err := http.NewRequest("GET", serverURL+"/stats", nil)
		if err == nil {
			if cfg.Server.Token != "" {
				req.Header.Set("Authorization", "Bearer "+cfg.Server.Token)
			}
			if statsResp, err := client.Do(req); err == nil {
				var stats struct {
					Count     int `json:"count"`
					Dimension int `json:"dimension"`
				}
				if decodeJSON(statsResp, &stats) == nil {
					printStatus("Chunks", "%d", stats.Count)
					if stats.Dimension > 0 {
						printStatus("Dimension", "%d", stats.Dimension)
					}
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
