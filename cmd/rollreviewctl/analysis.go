package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/cache"
	"github.com/kiranshivaraju/rollreview/internal/reconcile"
	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		videoID int64
		file    string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an AI analysis payload for a video",
		Long: `Replace the analysis of a video with the AI payload in --file.
Use --file - to read the payload from stdin. When REDIS_URL is set the
server's cached projection of the video is invalidated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if videoID <= 0 {
				return fmt.Errorf("--video must be a positive integer")
			}
			raw, err := readPayload(cmd, file)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(st store.Store) error {
				return a.withCache(cmd.Context(), func(c cache.Cache, ttl time.Duration) error {
					svc, err := a.service(cmd.Context(), st, reconcile.WithCache(c, ttl))
					if err != nil {
						return err
					}
					if err := svc.Import(cmd.Context(), videoID, raw); err != nil {
						return fmt.Errorf("failed to import analysis: %w", err)
					}
					out, err := svc.Project(cmd.Context(), videoID)
					if err != nil {
						return fmt.Errorf("failed to load imported analysis: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported analysis for video %d: %d technique(s), %d drill(s), %d weakness(es).\n",
						videoID, len(out.Techniques), len(out.Drills), len(out.Weaknesses))
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&videoID, "video", 0, "video ID")
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the AI payload JSON, or - for stdin")
	cmd.MarkFlagRequired("video")
	cmd.MarkFlagRequired("file")
	return cmd
}

func readPayload(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return raw, nil
}

func newShowCmd(a *app) *cobra.Command {
	var videoID int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the projected analysis of a video as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if videoID <= 0 {
				return fmt.Errorf("--video must be a positive integer")
			}
			return a.withStore(cmd.Context(), func(st store.Store) error {
				svc, err := a.service(cmd.Context(), st)
				if err != nil {
					return err
				}
				out, err := svc.Project(cmd.Context(), videoID)
				if err != nil {
					return fmt.Errorf("failed to load analysis: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}
	cmd.Flags().Int64Var(&videoID, "video", 0, "video ID")
	cmd.MarkFlagRequired("video")
	return cmd
}
