package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"interview_agent/internal/export"
	"interview_agent/internal/storage"

	"github.com/spf13/cobra"
)

var (
	transcriptFormat string
	transcriptOut    string
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript <session-id>",
	Short: "Export a stored session as a transcript",
	Long: `Reads a session from the configured store and renders it. Only the redis
backend outlives the server process, so this is mostly useful with it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.For(transcriptFormat)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := store.Get(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("session %s not found (or expired)", args[0])
		}
		if err != nil {
			return err
		}

		body, err := exporter.Export(export.Transcript{
			Candidate: cfg.Interview.Candidate,
			Date:      time.Now(),
			Turns:     sess.Snapshot.Turns,
		})
		if err != nil {
			return err
		}

		if transcriptOut == "" {
			_, err = cmd.OutOrStdout().Write(body)
			return err
		}
		return os.WriteFile(transcriptOut, body, 0o644)
	},
}

func init() {
	transcriptCmd.Flags().StringVar(&transcriptFormat, "format", "text", "text or json")
	transcriptCmd.Flags().StringVarP(&transcriptOut, "out", "o", "", "write to a file instead of stdout")
}
