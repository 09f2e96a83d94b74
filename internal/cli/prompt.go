package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Terminal seams, replaced in tests.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// prompter reads answers from the command's input stream.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// stdin is true when input is the process's real stdin, so hidden
	// password entry is possible.
	stdin bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{
		in:    bufio.NewReader(in),
		out:   cmd.ErrOrStderr(),
		stdin: in == os.Stdin,
	}
}

// line prints label and returns the trimmed answer, or def if the answer is empty.
func (p *prompter) line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		if err == io.EOF && def != "" {
			return def, nil
		}
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// required repeats the prompt until a non-empty answer is given.
func (p *prompter) required(label string) (string, error) {
	for {
		v, err := p.line(label, "")
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintf(p.out, "  Error: %s is required\n", strings.ToLower(label))
	}
}

// password reads a secret without echo when attached to a terminal.
func (p *prompter) password(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)

	fd := int(os.Stdin.Fd())
	if p.stdin && isTerminal(fd) {
		b, err := readPassword(fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(input, "\r\n"), nil
}

// confirm asks a yes/no question; anything but y/yes is no.
func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.line(question+" [y/N]", "")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
