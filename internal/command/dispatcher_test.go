package command

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/coordinator"
)

// --- Test Helpers ---

// runScript drives a fresh engine through a whole command script and returns
// the protocol output.
func runScript(t *testing.T, script string) string {
	t.Helper()
	var buf bytes.Buffer
	coord, err := coordinator.New(coordinator.Config{Out: &buf, Logger: zap.NewNop()})
	require.NoError(t, err)

	d := NewDispatcher(Config{Coordinator: coord, Out: &buf, Logger: zap.NewNop()})
	require.NoError(t, d.Run(context.Background(), strings.NewReader(script)))
	return buf.String()
}

func nonEmptyLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// --- End-to-end scripts ---

func TestScriptBasicCommit(t *testing.T) {
	out := runScript(t, `
// basic write, read-your-own-write, commit
begin(T1)
W(T1, x1, 101)
R(T1, x1)
end(T1)
dump()
`)
	lines := nonEmptyLines(out)
	require.Equal(t, "Transaction T1 begins at time 1", lines[0])
	require.Equal(t, "W(T1, x1, 101) -> sites: 2", lines[1])
	require.Equal(t, "x1: 101 (RYOW)", lines[2])
	require.Equal(t, "T1 commits", lines[3])
	require.Contains(t, out, "site 2 - x1: 101,")
}

func TestScriptFirstCommitterWins(t *testing.T) {
	out := runScript(t, `
begin(T1)
begin(T2)
W(T1, x2, 22)
W(T2, x2, 33)
end(T1)
end(T2)
`)
	require.Contains(t, out, "T1 commits\n")
	require.Contains(t, out, "T2 aborts (First-committer-wins)\n")
}

func TestScriptSiteFailureAbortsUnreplicatedReader(t *testing.T) {
	out := runScript(t, `
begin(T1)
R(T1, x3)
fail(4)
end(T1)
`)
	require.Contains(t, out, "x3: 30\n")
	require.Contains(t, out, "T1 aborts (Site failure)\n")
}

func TestScriptWaitAndRetry(t *testing.T) {
	out := runScript(t, `
fail(2)
begin(T1)
R(T1, x1)
recover(2)
end(T1)
`)
	require.Equal(t, []string{
		"Site 2 fails",
		"Transaction T1 begins at time 2",
		"Transaction T1 waits (site 2 down)",
		"Site 2 recovers",
		"Retry: T1",
		"x1: 10",
		"T1 commits",
	}, nonEmptyLines(out))
}

func TestScriptMalformedCommandsDoNotTickClock(t *testing.T) {
	out := runScript(t, `
begin T1
frobnicate(T1)
begin(T1)
`)
	// Both malformed lines are diagnosed and skipped; the begin still lands
	// on tick 1.
	require.Equal(t, []string{
		"Error: Invalid command format: begin T1",
		"Error: Unknown command: frobnicate",
		"Transaction T1 begins at time 1",
	}, nonEmptyLines(out))
}

func TestScriptCommentsAreIgnored(t *testing.T) {
	out := runScript(t, `
// comment
# another comment

begin(T1)
end(T1)
`)
	require.Equal(t, []string{
		"Transaction T1 begins at time 1",
		"T1 commits",
	}, nonEmptyLines(out))
}
