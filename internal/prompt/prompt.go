// Package prompt reads answers, confirmations and passwords from the user.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Terminal colors shared by prompts and the interactive menu.
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

var (
	// ErrEmptyPassword is returned when the user enters no password.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordMismatch is returned when a confirmation entry differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Confirmer asks the user questions. Destructive operations take one so
// that the decision stays with the caller's user interface.
type Confirmer interface {
	// Confirm asks a yes/no question. Anything but y/yes is a no.
	Confirm(question string) (bool, error)

	// Ask asks a free-form question and returns the trimmed answer.
	Ask(question string) (string, error)
}

// PasswordReader reads secrets without echo.
type PasswordReader interface {
	Password(label string) ([]byte, error)
}

// Terminal prompts on an output stream and reads from an input stream.
// Passwords are read without echo when the input is a terminal.
type Terminal struct {
	in    *bufio.Reader
	fd    int
	isTTY bool
	out   io.Writer
	mu    sync.Mutex
}

// NewTerminal prompts on stderr and reads from stdin.
func NewTerminal() *Terminal {
	fd := int(os.Stdin.Fd())
	return &Terminal{
		in:    bufio.NewReader(os.Stdin),
		fd:    fd,
		isTTY: term.IsTerminal(fd),
		out:   os.Stderr,
	}
}

// NewStreams returns a Terminal over arbitrary streams. Passwords echo.
func NewStreams(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:  bufio.NewReader(in),
		fd:  -1,
		out: out,
	}
}

// Ask prints question and returns the trimmed line read.
func (t *Terminal) Ask(question string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprint(t.out, ColorCyan+" "+question+": "+ColorReset)
	return t.readLine()
}

// Confirm asks a [y/N] question.
func (t *Terminal) Confirm(question string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprint(t.out, ColorCyan+" "+question+" [y/N]: "+ColorReset)
	answer, err := t.readLine()
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// Password reads a secret. The returned slice should be wiped by the caller.
func (t *Terminal) Password(label string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprint(t.out, ColorCyan+" "+label+": "+ColorReset)

	var raw []byte
	if t.isTTY {
		b, err := term.ReadPassword(t.fd)
		fmt.Fprintln(t.out)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		raw = b
	} else {
		line, err := t.readLine()
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		raw = []byte(line)
	}

	if len(raw) == 0 {
		return nil, ErrEmptyPassword
	}
	return raw, nil
}

// WaitForEnter blocks until a newline is read.
func (t *Terminal) WaitForEnter() {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprint(t.out, ColorDim+" Press Enter to continue..."+ColorReset)
	t.readLine()
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewPassword reads a password twice and requires both entries to match.
func NewPassword(r PasswordReader, label string) ([]byte, error) {
	first, err := r.Password(label)
	if err != nil {
		return nil, err
	}
	second, err := r.Password("Confirm " + strings.ToLower(label[:1]) + label[1:])
	if err != nil {
		clear(first)
		return nil, err
	}
	defer clear(second)

	if string(first) != string(second) {
		clear(first)
		return nil, ErrPasswordMismatch
	}
	return first, nil
}

// IsYes reports whether answer is an affirmative reply.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
