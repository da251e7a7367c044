// Package rewrite turns a device's running configuration into a startup
// configuration for its simulated twin: only the stanzas of interfaces that
// exist in the simulation are kept, unsupported lines are dropped and native
// interface names are replaced with simulator names.
package rewrite

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const terminator = "!"

var interfaceDecl = regexp.MustCompile(`^interface\s+\S+`)

// DefaultExcludePatterns drops BFD configuration, which the simulated link
// fabric cannot run.
var DefaultExcludePatterns = []string{`^\s*bfd\b`}

// Mapping renames one interface. Address identifies the interface's stanza.
type Mapping struct {
	Native  string
	Sim     string
	Address string
}

// StanzaNotFoundError is returned when no interface stanza carries the
// address of a mapped interface.
type StanzaNotFoundError struct {
	Interface string
	Address   string
}

func (e *StanzaNotFoundError) Error() string {
	return fmt.Sprintf("no interface stanza with address %s for %s", e.Address, e.Interface)
}

// Rewriter turns a device configuration into a startup configuration for
// the simulated node.
type Rewriter struct {
	exclude []*regexp.Regexp
}

// New returns a Rewriter that drops every line matching one of
// excludePatterns.
func New(excludePatterns []string) (*Rewriter, error) {
	r := &Rewriter{}
	for _, p := range excludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		r.exclude = append(r.exclude, re)
	}
	return r, nil
}

// Rewrite returns one stanza per mapping, in mapping order, each closed by
// the terminator line. Applying it to its own output returns the output
// unchanged.
func (r *Rewriter) Rewrite(config string, mappings []Mapping) (string, error) {
	stanzas := parseStanzas(config)
	used := make([]bool, len(stanzas))
	rendered := make([][]string, len(mappings))

	// Longest native names first, so a name that is a prefix of another
	// never gets a chance to claim the longer one's text.
	order := make([]int, len(mappings))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(len(mappings[b].Native), len(mappings[a].Native))
	})

	for _, i := range order {
		m := mappings[i]

		idx := findStanza(stanzas, used, m.Address)
		if idx < 0 {
			return "", &StanzaNotFoundError{Interface: m.Native, Address: m.Address}
		}
		used[idx] = true

		lines := make([]string, 0, len(stanzas[idx]))
		for _, line := range stanzas[idx] {
			if r.excluded(line) {
				continue
			}
			lines = append(lines, replaceToken(line, m.Native, m.Sim))
		}
		rendered[i] = lines
	}

	var sb strings.Builder
	for _, lines := range rendered {
		for _, line := range lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString(terminator)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func (r *Rewriter) excluded(line string) bool {
	for _, re := range r.exclude {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// parseStanzas splits a configuration into interface stanzas. A stanza is
// the declaration line followed by its indented children and ends at the
// terminator or at the next unindented line.
func parseStanzas(config string) [][]string {
	var (
		stanzas [][]string
		current []string
	)

	flush := func() {
		if current != nil {
			stanzas = append(stanzas, current)
			current = nil
		}
	}

	for _, line := range strings.Split(config, "\n") {
		line = strings.TrimRight(line, " \t\r")

		if current != nil {
			switch {
			case strings.TrimSpace(line) == terminator:
				flush()
				continue
			case line == "":
				continue
			case isIndented(line):
				current = append(current, line)
				continue
			default:
				flush()
			}
		}

		if interfaceDecl.MatchString(line) {
			current = []string{line}
		}
	}
	flush()

	return stanzas
}

func findStanza(stanzas [][]string, used []bool, address string) int {
	for i, stanza := range stanzas {
		if used[i] {
			continue
		}
		for _, child := range stanza[1:] {
			if containsToken(child, address) {
				return i
			}
		}
	}
	return -1
}

func isIndented(line string) bool {
	return line[0] == ' ' || line[0] == '\t'
}

// containsToken reports whether tok appears in s delimited by whitespace,
// a slash or the ends of s.
func containsToken(s, tok string) bool {
	for _, field := range strings.Fields(s) {
		field, _, _ = strings.Cut(field, "/")
		if field == tok {
			return true
		}
	}
	return false
}

// replaceToken replaces every occurrence of old in s that is not part of a
// longer interface name.
func replaceToken(s, old, repl string) string {
	if old == "" || old == repl {
		return s
	}

	var sb strings.Builder
	last := 0
	for i := 0; i+len(old) <= len(s); {
		j := strings.Index(s[i:], old)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(old)

		if (start == 0 || !isNameByte(s[start-1])) && (end == len(s) || !isNameByte(s[end])) {
			sb.WriteString(s[last:start])
			sb.WriteString(repl)
			last = end
			i = end
			continue
		}
		i = start + 1
	}
	sb.WriteString(s[last:])

	return sb.String()
}

func isNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '/', b == '.', b == ':', b == '_', b == '-':
		return true
	}
	return false
}
