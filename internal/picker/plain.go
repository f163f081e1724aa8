package picker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"omniagent/internal/prompt"
)

// ErrQuit reports that the user left the menu without choosing a query.
var ErrQuit = errors.New("no query selected")

// Plain is the line-oriented query menu for terminals without TUI support.
type Plain struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewPlain(in io.Reader, out io.Writer) *Plain {
	return &Plain{scanner: bufio.NewScanner(in), out: out}
}

// Choose prints the numbered examples and returns the selected query. 0 asks
// for a query typed by hand; any other unknown choice quits with ErrQuit.
func (p *Plain) Choose() (string, error) {
	fmt.Fprintln(p.out, "\n** Select a Query or Type Your Own **")
	fmt.Fprintln(p.out)
	fmt.Fprint(p.out, prompt.Menu())
	fmt.Fprint(p.out, "\n> Enter number: ")

	choice, err := p.readLine()
	if err != nil {
		return "", err
	}

	n, convErr := strconv.Atoi(choice)
	switch {
	case convErr == nil && n == 0:
		fmt.Fprintln(p.out, ">> Selected Manual Input mode.")
		fmt.Fprint(p.out, ">> Type your query here: ")
		query, err := p.readLine()
		if err != nil {
			return "", err
		}
		if query == "" {
			fmt.Fprintln(p.out, ">> Empty query. Bye bye :)")
			return "", ErrQuit
		}
		return query, nil
	case convErr == nil:
		if q, ok := prompt.Example(n); ok {
			return q, nil
		}
	}

	fmt.Fprintln(p.out, ">> Invalid choice. Quitting the program. Bye bye :)")
	return "", ErrQuit
}

func (p *Plain) readLine() (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrQuit
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}
