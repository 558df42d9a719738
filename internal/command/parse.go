// Package command parses the textual command stream and drives a coordinator
// from it. The grammar is one command per line: a verb, parentheses, and
// comma-separated arguments. Blank lines and lines starting with '/' or '#'
// are comments. Malformed lines produce a diagnostic and are skipped without
// reaching the engine, so they never advance the logical clock.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a command verb.
type Kind int

const (
	KindBegin Kind = iota
	KindRead
	KindWrite
	KindEnd
	KindFail
	KindRecover
	KindDump
)

// Command is one parsed line of the input stream.
type Command struct {
	Kind     Kind
	Txn      string
	Variable int
	Value    int
	Site     int
}

// Parse parses a single input line. It returns (nil, nil) for blank lines and
// comments, and an error carrying the diagnostic text for malformed commands.
func Parse(line string) (*Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '/' || trimmed[0] == '#' {
		return nil, nil
	}

	open := strings.IndexByte(trimmed, '(')
	if open < 0 {
		return nil, fmt.Errorf("Invalid command format: %s", trimmed)
	}
	verb := strings.TrimSpace(trimmed[:open])

	var argsStr string
	if end := strings.IndexByte(trimmed, ')'); end > open {
		argsStr = trimmed[open+1 : end]
	}
	args := splitArgs(argsStr)

	switch verb {
	case "begin":
		if len(args) != 1 {
			return nil, fmt.Errorf("begin requires 1 argument")
		}
		return &Command{Kind: KindBegin, Txn: args[0]}, nil
	case "R":
		if len(args) != 2 {
			return nil, fmt.Errorf("R requires 2 arguments")
		}
		varID, err := parseVariable(args[1])
		if err != nil {
			return nil, err
		}
		return &Command{Kind: KindRead, Txn: args[0], Variable: varID}, nil
	case "W":
		if len(args) != 3 {
			return nil, fmt.Errorf("W requires 3 arguments")
		}
		varID, err := parseVariable(args[1])
		if err != nil {
			return nil, err
		}
		value, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", args[2])
		}
		return &Command{Kind: KindWrite, Txn: args[0], Variable: varID, Value: value}, nil
	case "end":
		if len(args) != 1 {
			return nil, fmt.Errorf("end requires 1 argument")
		}
		return &Command{Kind: KindEnd, Txn: args[0]}, nil
	case "fail":
		if len(args) != 1 {
			return nil, fmt.Errorf("fail requires 1 argument")
		}
		site, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid site %q", args[0])
		}
		return &Command{Kind: KindFail, Site: site}, nil
	case "recover":
		if len(args) != 1 {
			return nil, fmt.Errorf("recover requires 1 argument")
		}
		site, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid site %q", args[0])
		}
		return &Command{Kind: KindRecover, Site: site}, nil
	case "dump":
		return &Command{Kind: KindDump}, nil
	default:
		return nil, fmt.Errorf("Unknown command: %s", verb)
	}
}

// parseVariable accepts both the "x7" and the bare "7" spelling.
func parseVariable(token string) (int, error) {
	digits := strings.TrimPrefix(token, "x")
	varID, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("invalid variable %q", token)
	}
	return varID, nil
}

func splitArgs(argsStr string) []string {
	if strings.TrimSpace(argsStr) == "" {
		return nil
	}
	parts := strings.Split(argsStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
