// Package prompt holds the terminal interaction of the CLI: passwords and
// the review of candidate links.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// LinkTable renders links as a numbered review list.
func LinkTable(links []topology.Link) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Subnet", "Nodes"})
	for _, l := range links {
		t.AppendRow(table.Row{l.ID, l.Subnet, strings.Join(l.Nodes, ", ")})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

// Static prunes a fixed set of link ids.
type Static []int

func (s Static) Decide(context.Context, []topology.Link) ([]int, error) {
	return []int(s), nil
}

// Interactive asks the operator which candidate links to leave out. End of
// input means nothing is pruned.
type Interactive struct {
	In  io.Reader
	Out io.Writer
}

// NewInteractive prompts on the process's terminal.
func NewInteractive() *Interactive {
	return &Interactive{In: os.Stdin, Out: os.Stdout}
}

func (p *Interactive) Decide(ctx context.Context, candidates []topology.Link) ([]int, error) {
	fmt.Fprintln(p.Out, "Candidate links:")
	fmt.Fprintln(p.Out, LinkTable(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}

	known := make(map[int]bool, len(candidates))
	for _, l := range candidates {
		known[l.ID] = true
	}

	scanner := bufio.NewScanner(p.In)
	readLine := func(prompt string) (string, bool, error) {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		fmt.Fprint(p.Out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(p.Out)
			return "", false, scanner.Err()
		}
		return strings.TrimSpace(scanner.Text()), true, nil
	}

	for {
		answer, ok, err := readLine("Remove any links? [y/N]: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read answer: %w", err)
		}
		if !ok {
			return nil, nil
		}

		switch strings.ToLower(answer) {
		case "", "n", "no":
			return nil, nil
		case "y", "yes":
		default:
			fmt.Fprintln(p.Out, "Please answer y or n.")
			continue
		}

		for {
			answer, ok, err := readLine("Link ids to remove (space separated): ")
			if err != nil {
				return nil, fmt.Errorf("failed to read link ids: %w", err)
			}
			if !ok {
				return nil, nil
			}

			ids, err := parseIDs(answer, known)
			if err != nil {
				fmt.Fprintf(p.Out, "%v, try again.\n", err)
				continue
			}
			return ids, nil
		}
	}
}

func parseIDs(answer string, known map[int]bool) ([]int, error) {
	fields := strings.Fields(answer)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no ids given")
	}

	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", f)
		}
		if !known[id] {
			return nil, fmt.Errorf("no link with id %d", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
