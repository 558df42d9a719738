package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"begin", "begin(T1)", Command{Kind: KindBegin, Txn: "T1"}},
		{"read with x prefix", "R(T1, x4)", Command{Kind: KindRead, Txn: "T1", Variable: 4}},
		{"read bare variable", "R(T1, 4)", Command{Kind: KindRead, Txn: "T1", Variable: 4}},
		{"write", "W(T1, x6, 66)", Command{Kind: KindWrite, Txn: "T1", Variable: 6, Value: 66}},
		{"write negative value", "W(T1,x6,-5)", Command{Kind: KindWrite, Txn: "T1", Variable: 6, Value: -5}},
		{"end", "end(T1)", Command{Kind: KindEnd, Txn: "T1"}},
		{"fail", "fail(3)", Command{Kind: KindFail, Site: 3}},
		{"recover", "recover( 3 )", Command{Kind: KindRecover, Site: 3}},
		{"dump", "dump()", Command{Kind: KindDump}},
		{"surrounding whitespace", "  begin( T1 )  ", Command{Kind: KindBegin, Txn: "T1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.line)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, tc.want, *got)
		})
	}
}

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	for _, line := range []string{"", "   ", "// a comment", "# a comment", "/ also a comment"} {
		cmd, err := Parse(line)
		require.NoError(t, err, "line %q", line)
		require.Nil(t, cmd, "line %q", line)
	}
}

func TestParseDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{"no parentheses", "begin T1", "Invalid command format: begin T1"},
		{"begin arity", "begin(T1, T2)", "begin requires 1 argument"},
		{"read arity", "R(T1)", "R requires 2 arguments"},
		{"write arity", "W(T1, x2)", "W requires 3 arguments"},
		{"end arity", "end()", "end requires 1 argument"},
		{"fail arity", "fail()", "fail requires 1 argument"},
		{"recover arity", "recover()", "recover requires 1 argument"},
		{"unknown verb", "commit(T1)", "Unknown command: commit"},
		{"bad variable", "R(T1, xq)", `invalid variable "xq"`},
		{"bad value", "W(T1, x2, many)", `invalid value "many"`},
		{"bad site", "fail(north)", `invalid site "north"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := Parse(tc.line)
			require.Nil(t, cmd)
			require.EqualError(t, err, tc.wantErr)
		})
	}
}
