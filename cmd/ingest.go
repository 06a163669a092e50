package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthlens/audit-cli/internal/fetch"
	"github.com/growthlens/audit-cli/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch and classify a remote export bundle",
	Long:  "Downloads marketing export files over HTTP or FTP into the local temp directory and prints which audit input slot each file was classified into.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		urls, _ := cmd.Flags().GetStringArray("url")
		ftpHost, _ := cmd.Flags().GetString("ftp-host")
		ftpDir, _ := cmd.Flags().GetString("ftp-dir")

		if len(urls) == 0 && ftpHost == "" {
			return eris.New("nothing to ingest: pass --url or --ftp-host")
		}

		files, unknown, err := fetchRemote(ctx, urls, ftpHost, ftpDir)
		if err != nil {
			return err
		}

		out := struct {
			Files   model.SourceFiles `json:"files"`
			Unknown []string          `json:"unknown,omitempty"`
		}{Files: files, Unknown: unknown}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	ingestCmd.Flags().StringArray("url", nil, "export file URL (repeatable)")
	ingestCmd.Flags().String("ftp-host", "", "FTP server address (host:port)")
	ingestCmd.Flags().String("ftp-dir", "/", "remote directory holding the export bundle")
	rootCmd.AddCommand(ingestCmd)
}

// fetchRemote downloads export files into the ingest temp dir and classifies
// them into audit input slots by filename.
func fetchRemote(ctx context.Context, urls []string, ftpHost, ftpDir string) (model.SourceFiles, []string, error) {
	destDir := cfg.Ingest.TempDir
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return model.SourceFiles{}, nil, eris.Wrap(err, "create ingest temp dir")
	}

	var paths []string

	if len(urls) > 0 {
		dl := fetch.NewHTTPDownloader(fetch.HTTPOptions{
			Timeout:    time.Duration(cfg.Ingest.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Ingest.MaxRetries,
			RateLimit:  cfg.Ingest.RatePerS,
		})
		for _, u := range urls {
			path, err := dl.DownloadToFile(ctx, u, destDir)
			if err != nil {
				return model.SourceFiles{}, nil, err
			}
			paths = append(paths, path)
		}
	}

	if ftpHost != "" {
		src := fetch.NewFTPSource(fetch.FTPOptions{
			Addr:     ftpHost,
			User:     cfg.Ingest.FTPUser,
			Password: cfg.Ingest.FTPPassword,
			Timeout:  time.Duration(cfg.Ingest.TimeoutSecs) * time.Second,
		})
		ftpPaths, err := src.FetchDir(ctx, ftpDir, destDir)
		if err != nil {
			return model.SourceFiles{}, nil, err
		}
		paths = append(paths, ftpPaths...)
	}

	files, unknown := fetch.Classify(paths)
	if len(unknown) > 0 {
		zap.L().Warn("unclassified export files", zap.Strings("paths", unknown))
	}
	return files, unknown, nil
}
