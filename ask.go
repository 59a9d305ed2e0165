package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"interview_agent/internal/conversation"
	"interview_agent/internal/export"
	"interview_agent/internal/gateway"
	"interview_agent/internal/logger"

	"github.com/spf13/cobra"
)

var askTranscript string

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Interview the candidate in the terminal",
	Long: `Answers a single question given as arguments, or runs an interactive
interview reading one question per line. Type the number of a suggested
question to ask it, /progress to see how far along you are, or /quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// keep log lines off the conversation
		if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
			cfg.Log.Output = "stderr"
			if err := logger.InitLogger(cfg.Log); err != nil {
				return err
			}
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		ctrl := a.newController()
		out := cmd.OutOrStdout()

		if len(args) > 0 {
			err = askOne(ctx, ctrl, strings.Join(args, " "), out)
			printSuggestions(out, ctrl.State().PendingFollowUps)
		} else {
			err = runInterview(ctx, ctrl, cmd.InOrStdin(), out)
		}

		if askTranscript != "" {
			if werr := writeTranscript(askTranscript, ctrl.State().Turns, time.Now()); werr != nil {
				return werr
			}
			fmt.Fprintf(out, "Transcript saved to %s\n", askTranscript)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	askCmd.Flags().StringVar(&askTranscript, "transcript", "", "write the transcript to this file on exit (.json for JSON)")
}

// runInterview reads questions from in until EOF or /quit.
func runInterview(ctx context.Context, ctrl *conversation.Controller, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	announced := false

	printSuggestions(out, ctrl.State().PendingFollowUps)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/progress":
			p := ctrl.Progress()
			fmt.Fprintf(out, "%d of %d questions asked\n", p.Current, p.Total)
			continue
		}

		question := pickSuggestion(line, ctrl.State().PendingFollowUps)
		if err := askOne(ctx, ctrl, question, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "[error] %s\n", err)
		}

		if p := ctrl.Progress(); p.Complete && !announced {
			announced = true
			fmt.Fprintf(out, "That's all %d questions. Keep going, or /quit to finish.\n", p.Total)
		}
		printSuggestions(out, ctrl.State().PendingFollowUps)
	}
}

// askOne streams one answer to out.
func askOne(ctx context.Context, ctrl *conversation.Controller, question string, out io.Writer) error {
	name := speakerName()
	_, err := ctrl.Submit(ctx, question, func(e conversation.Event) {
		switch e.Type {
		case conversation.EventStarted:
			fmt.Fprintf(out, "%s: ", name)
		case conversation.EventDelta:
			fmt.Fprint(out, e.Text)
		case conversation.EventFinished:
			fmt.Fprint(out, "\n\n")
		}
	})
	if err != nil && gateway.KindOf(err) == gateway.KindTimeout {
		return fmt.Errorf("the answer timed out: %w", err)
	}
	return err
}

// pickSuggestion maps "2" to the second suggestion. Anything else is asked
// as typed.
func pickSuggestion(line string, suggestions []string) string {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(suggestions) {
		return line
	}
	return suggestions[n-1]
}

func printSuggestions(out io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(out, "Suggested questions:")
	for i, q := range suggestions {
		fmt.Fprintf(out, "  %d. %s\n", i+1, q)
	}
}

func speakerName() string {
	if cfg == nil {
		return "Candidate"
	}
	if fields := strings.Fields(cfg.Interview.Candidate); len(fields) > 0 {
		return fields[0]
	}
	return "Candidate"
}

func writeTranscript(path string, turns []conversation.Turn, date time.Time) error {
	format := "text"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	exporter, err := export.For(format)
	if err != nil {
		return err
	}

	candidate := ""
	if cfg != nil {
		candidate = cfg.Interview.Candidate
	}
	body, err := exporter.Export(export.Transcript{Candidate: candidate, Date: date, Turns: turns})
	if err != nil {
		return fmt.Errorf("error exporting transcript: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("error writing transcript: %w", err)
	}
	return nil
}
