package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"

	"db-shuttle/internal/database"
	"db-shuttle/internal/dialect"
)

// Prompter asks questions on a line-oriented terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// readPassword reads a line without echo; nil falls back to a plain line.
	readPassword func() (string, error)
}

// NewPrompter prompts on stdin/stdout, hiding passwords when stdin is a TTY.
func NewPrompter() *Prompter {
	p := &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.readPassword = func() (string, error) {
			pass, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			return string(pass), err
		}
	}
	return p
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask prints label and returns the answer, or def when the answer is empty.
func (p *Prompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// AskRequired repeats the question until a non-empty answer is given.
func (p *Prompter) AskRequired(label, def string) (string, error) {
	for {
		v, err := p.Ask(label, def)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintf(p.out, "%s is required\n", label)
	}
}

func (p *Prompter) AskInt(label string, def int) (int, error) {
	for {
		v, err := p.Ask(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err == nil {
			return n, nil
		}
		fmt.Fprintf(p.out, "%q is not a number\n", v)
	}
}

func (p *Prompter) Password(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if p.readPassword != nil {
		pass, err := p.readPassword()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return pass, nil
	}
	return p.readLine()
}

// Confirm asks a yes/no question. Anything but y/yes is a no.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// SelectMany lists options and returns the chosen ones in list order. An
// empty answer selects everything when all is true.
func (p *Prompter) SelectMany(label string, options []string, all bool) ([]string, error) {
	for i, o := range options {
		fmt.Fprintf(p.out, "  %3d) %s\n", i+1, o)
	}
	hint := "numbers or ranges, e.g. 1,3-5"
	if all {
		hint += "; empty for all"
	}
	for {
		fmt.Fprintf(p.out, "%s (%s): ", label, hint)
		line, err := p.readLine()
		if err != nil {
			return nil, fmt.Errorf("read selection: %w", err)
		}
		if line == "" && all {
			return append([]string(nil), options...), nil
		}
		idx, err := ParseSelection(line, len(options))
		if err != nil {
			fmt.Fprintln(p.out, err)
			continue
		}
		chosen := make([]string, len(idx))
		for i, n := range idx {
			chosen[i] = options[n]
		}
		return chosen, nil
	}
}

// ParseSelection turns "1,3-5" into sorted, de-duplicated zero-based indexes
// into a list of n options. "all" or "*" selects everything.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("nothing selected")
	}
	if input == "*" || strings.EqualFold(input, "all") {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("invalid selection %q", part)
			}
		}
		if from > to {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		if from < 1 || to > n {
			return nil, fmt.Errorf("selection %q is out of range 1-%d", part, n)
		}
		for i := from; i <= to; i++ {
			seen[i-1] = true
		}
	}

	idx := make([]int, 0, len(seen))
	for i := range seen {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx, nil
}

// PromptDescriptor fills the missing fields of desc interactively.
func (p *Prompter) PromptDescriptor(role string, desc database.Descriptor) (database.Descriptor, error) {
	var err error
	fmt.Fprintf(p.out, "\n%s connection\n", role)

	if desc.Driver == "" {
		if desc.Driver, err = p.Ask("Driver", dialect.DefaultDriver); err != nil {
			return desc, err
		}
	}
	d, err := desc.Dialect()
	if err != nil {
		return desc, err
	}
	if desc.Host == "" {
		if desc.Host, err = p.AskRequired("Host", "localhost"); err != nil {
			return desc, err
		}
	}
	if desc.Port == 0 {
		if desc.Port, err = p.AskInt("Port", d.DefaultPort()); err != nil {
			return desc, err
		}
	}
	if desc.Database == "" {
		if desc.Database, err = p.AskRequired("Database", ""); err != nil {
			return desc, err
		}
	}
	if desc.User == "" {
		if desc.User, err = p.AskRequired("User", ""); err != nil {
			return desc, err
		}
	}
	if desc.Password == "" {
		if desc.Password, err = p.Password("Password"); err != nil {
			return desc, err
		}
	}
	return desc, desc.Validate()
}
