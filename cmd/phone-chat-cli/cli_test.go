package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/assistant"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/storage"
)

type fakeChat struct {
	replies  map[string]*assistant.Reply
	errs     map[string]error
	requests []assistant.Request
	cleared  []string
}

func (f *fakeChat) Chat(ctx context.Context, req assistant.Request) (*assistant.Reply, error) {
	f.requests = append(f.requests, req)
	if err := f.errs[req.Message]; err != nil {
		return nil, err
	}
	if r := f.replies[req.Message]; r != nil {
		return r, nil
	}
	found, yes := 3, true
	return &assistant.Reply{Response: "answer to " + req.Message, IsDBQuery: true, DatabaseResults: &yes, PhonesFound: &found}, nil
}

func (f *fakeChat) Context(ctx context.Context, id string) (domain.Conversation, error) {
	conv := domain.NewConversation(id)
	conv.LastQuery = "remembered query"
	return conv, nil
}

func (f *fakeChat) Clear(ctx context.Context, id string) (assistant.ClearResult, error) {
	f.cleared = append(f.cleared, id)
	return assistant.ClearResult{Success: true, Message: assistant.MsgContextCleared}, nil
}

func setupUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	outputJSON = false
	ui = NewUI(&buf, &buf, false, true)
	return &buf
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	outputJSON = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestReadMessages(t *testing.T) {
	in := "# header\nbest phone under 15k\n\n  compare Samsung vs Redmi  \n#skip\n"
	got, err := readMessages(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"best phone under 15k", "compare Samsung vs Redmi"}, got)
}

func TestRunReplay(t *testing.T) {
	setupUI(t)
	no := false
	svc := &fakeChat{
		replies: map[string]*assistant.Reply{
			"poem":          {Response: "off topic", Allowed: &no},
			"apple under 5": {Response: assistant.MsgNoPhones, IsDBQuery: true, DatabaseResults: &no},
		},
		errs: map[string]error{
			"burst": domain.RateLimitExceeded("too many", nil),
		},
	}

	steps := 0
	results := runReplay(context.Background(), svc, []string{"samsung under 20k", "poem", "apple under 5", "burst"}, "", func() { steps++ })

	require.Len(t, results, 4)
	assert.Equal(t, 4, steps)
	assert.Equal(t, []string{"answered", "rejected", "no_match", "rate_limited"},
		[]string{results[0].Outcome, results[1].Outcome, results[2].Outcome, results[3].Outcome})
	assert.Equal(t, 3, results[0].PhonesFound)
	assert.Equal(t, assistant.MsgTooManyRequests, results[3].Response)
	assert.Equal(t, "replay-2", svc.requests[1].ConversationID)
	assert.Equal(t, map[string]int{"answered": 1, "rejected": 1, "no_match": 1, "rate_limited": 1}, summarize(results))
}

func TestRunReplay_SingleConversationAndCancel(t *testing.T) {
	setupUI(t)
	svc := &fakeChat{}
	ctx, cancel := context.WithCancel(context.Background())

	results := runReplay(ctx, svc, []string{"a", "b", "c"}, "dialogue", func() { cancel() })
	require.Len(t, results, 1)
	assert.Equal(t, "dialogue", svc.requests[0].ConversationID)
}

func TestWriteResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, writeResults(path, []ReplayResult{{Index: 1, Message: "x", Outcome: "answered"}, {Index: 2, Message: "y", Outcome: "failed"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first ReplayResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "answered", first.Outcome)
}

func TestRunREPL(t *testing.T) {
	buf := setupUI(t)
	svc := &fakeChat{}

	in := strings.NewReader("samsung under 20k\n\n/context\n/clear\n/exit\nnever sent\n")
	require.NoError(t, runREPL(context.Background(), in, svc, "repl"))

	require.Len(t, svc.requests, 1)
	assert.Equal(t, "repl", svc.requests[0].ConversationID)
	assert.Equal(t, []string{"repl"}, svc.cleared)

	out := buf.String()
	assert.Contains(t, out, "answer to samsung under 20k")
	assert.Contains(t, out, "remembered query")
	assert.Contains(t, out, "Context cleared")
}

func TestRunREPL_ErrorsDoNotEndSession(t *testing.T) {
	buf := setupUI(t)
	svc := &fakeChat{errs: map[string]error{"boom": domain.UpstreamCompletionError("down", nil)}}

	require.NoError(t, runREPL(context.Background(), strings.NewReader("boom\nredmi\n"), svc, "repl"))
	assert.Len(t, svc.requests, 2)
	assert.Contains(t, buf.String(), assistant.MsgQueryFailed)
	assert.Contains(t, buf.String(), "answer to redmi")
}

func TestInspectIntent(t *testing.T) {
	idx, err := catalog.Default()
	require.NoError(t, err)

	intent, phones := inspectIntent(idx, "best phone under 15k", domain.NewConversation("x"))
	assert.Equal(t, 15000, intent.Budget)
	assert.Empty(t, intent.Brand)
	assert.False(t, intent.Comparison)
	for _, p := range phones {
		assert.LessOrEqual(t, p.Price, 15000)
	}

	intent, _ = inspectIntent(idx, "compare Samsung vs Redmi", domain.NewConversation("x"))
	assert.True(t, intent.Comparison)
	assert.Equal(t, "samsung", intent.Brand)
}

func TestBrandEntries(t *testing.T) {
	idx, err := catalog.Default()
	require.NoError(t, err)

	assert.Len(t, brandEntries(idx, ""), idx.Len())
	for _, e := range brandEntries(idx, "REDMI") {
		assert.Equal(t, "Redmi", e.Brand)
	}
}

func TestUserMessage(t *testing.T) {
	verbose = false
	assert.Equal(t, assistant.MsgMessageRequired, userMessage(domain.ValidationError("empty", nil)))
	assert.Equal(t, assistant.MsgTooManyRequests, userMessage(domain.RateLimitExceeded("x", nil)))
	assert.Equal(t, assistant.MsgQueryFailed, userMessage(domain.UpstreamCompletionError("x", nil)))
	assert.Equal(t, "cancelled", userMessage(context.Canceled))
}

func TestVersionCommand(t *testing.T) {
	out := runRoot(t, "version")
	assert.Contains(t, out, "phone-chat dev")
}

func TestCatalogCommand(t *testing.T) {
	out := runRoot(t, "catalog", "--brand", "nokia")
	assert.Contains(t, out, "Nokia")
	assert.NotContains(t, out, "Galaxy")
}

func TestAuditStatsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	t.Setenv("DATABASE_URL", "sqlite:"+path)

	db, err := storage.Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	repo := storage.NewExchangeRepository(db)
	for _, outcome := range []string{"answered", "answered", "rejected"} {
		require.NoError(t, repo.Insert(context.Background(), &storage.Exchange{ConversationID: "c", Message: "m", Outcome: outcome, StatusCode: 200}))
	}
	require.NoError(t, db.Close())

	out := runRoot(t, "audit", "stats")
	assert.Contains(t, out, "answered")
	assert.Contains(t, out, "rejected")

	out = runRoot(t, "audit", "conversation", "c", "--limit", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4) // header, separator, two rows
	assert.Contains(t, lines[0], "CONVERSATION")
}
