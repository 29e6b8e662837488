package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/assistant"
)

// ReplayResult is one replayed message.
type ReplayResult struct {
	Index          int    `json:"index"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
	Outcome        string `json:"outcome"`
	Response       string `json:"response,omitempty"`
	PhonesFound    int    `json:"phonesFound"`
	LatencyMs      int64  `json:"latencyMs"`
}

func newReplayCmd() *cobra.Command {
	var (
		conversation string
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Run every message in a file through the assistant",
		Long: `replay reads one message per line (blank lines and lines starting with #
are skipped). Each message gets its own conversation unless --conversation
is set, in which case the file is replayed as one dialogue and is subject to
the per-conversation rate limit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open messages: %w", err)
			}
			messages, err := readMessages(f)
			f.Close()
			if err != nil {
				return err
			}
			if len(messages) == 0 {
				ui.Warning("no messages in %s", args[0])
				return nil
			}

			ctx := cmd.Context()
			components, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			bar := ui.NewProgressBar(len(messages), "replaying")
			results := runReplay(ctx, components.Assistant, messages, conversation, func() { _ = bar.Add(1) })
			_ = bar.Finish()

			if outPath != "" {
				if err := writeResults(outPath, results); err != nil {
					return err
				}
				ui.Success("wrote %d results to %s", len(results), outPath)
			}

			if outputJSON {
				return writeJSON(ui.out, results)
			}
			renderSummary(results)
			return nil
		},
	}

	cmd.Flags().StringVar(&conversation, "conversation", "", "replay every message in this one conversation")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write results as JSON lines to this file")
	return cmd
}

func readMessages(r io.Reader) ([]string, error) {
	var messages []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		messages = append(messages, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return messages, nil
}

// runReplay sends messages in order and stops early when ctx is cancelled.
func runReplay(ctx context.Context, svc chatService, messages []string, conversation string, step func()) []ReplayResult {
	results := make([]ReplayResult, 0, len(messages))
	for i, msg := range messages {
		if ctx.Err() != nil {
			break
		}

		id := conversation
		if id == "" {
			id = fmt.Sprintf("replay-%d", i+1)
		}

		start := time.Now()
		reply, err := svc.Chat(ctx, assistant.Request{Message: msg, ConversationID: id})
		res := ReplayResult{
			Index:          i + 1,
			ConversationID: id,
			Message:        msg,
			LatencyMs:      time.Since(start).Milliseconds(),
		}
		if err != nil {
			res.Outcome = errorOutcome(err)
			res.Response = userMessage(err)
		} else {
			res.Outcome = outcomeOf(reply)
			res.Response = reply.Response
			if reply.PhonesFound != nil {
				res.PhonesFound = *reply.PhonesFound
			}
		}
		results = append(results, res)

		if step != nil {
			step()
		}
	}
	return results
}

func writeResults(path string, results []ReplayResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range results {
		line, err := jsonLine(r)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return w.Flush()
}

func summarize(results []ReplayResult) map[string]int {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

func renderSummary(results []ReplayResult) {
	ui.Section("Replay results")
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{fmt.Sprint(r.Index), truncate(r.Message, 48), r.Outcome, fmt.Sprint(r.PhonesFound), fmt.Sprintf("%dms", r.LatencyMs)})
	}
	ui.Table([]string{"#", "MESSAGE", "OUTCOME", "PHONES", "LATENCY"}, rows)

	ui.Section("Outcomes")
	counts := summarize(results)
	outcomes := make([]string, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	summary := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		summary = append(summary, []string{o, fmt.Sprint(counts[o])})
	}
	ui.Table([]string{"OUTCOME", "COUNT"}, summary)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
