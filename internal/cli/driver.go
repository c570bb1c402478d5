package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrQuit is returned by ReplDriver.Prompt when the human typed an explicit
// quit command, or when stdin closed (EOF), or when the process context was
// cancelled by a signal. RunSession propagates it unchanged; the caller
// treats it as a clean shutdown request, not an engine failure.
var ErrQuit = errors.New("cli: driver quit")

// ReplDriver implements scheduler.Driver over a line-oriented terminal: it
// prints the context rendering, reads one line of action text, and reports
// recoverable errors back to the same terminal. The blocking stdin read
// runs on its own goroutine and is cancellable via ctx, so SIGINT/SIGTERM
// can interrupt it cleanly instead of leaving the process hung on I/O.
type ReplDriver struct {
	ctx    context.Context
	in     *bufio.Scanner
	out    io.Writer
	errOut io.Writer

	lines chan string
	errs  chan error
}

// NewReplDriver builds a driver reading from in and writing prompts/errors
// to out/errOut. The read loop starts immediately in a background
// goroutine so a pending Scan() can coexist with ctx cancellation.
func NewReplDriver(ctx context.Context, in io.Reader, out, errOut io.Writer) *ReplDriver {
	d := &ReplDriver{
		ctx:    ctx,
		in:     bufio.NewScanner(in),
		out:    out,
		errOut: errOut,
		lines:  make(chan string),
		errs:   make(chan error, 1),
	}
	go d.readLoop()
	return d
}

func (d *ReplDriver) readLoop() {
	for d.in.Scan() {
		d.lines <- d.in.Text()
	}
	if err := d.in.Err(); err != nil {
		d.errs <- err
	} else {
		d.errs <- io.EOF
	}
	close(d.lines)
}

// Prompt satisfies scheduler.Driver: it renders ctx to the terminal, blocks
// for one line of input, and returns it verbatim for action.Parse to
// interpret. "quit" and "exit" (case-insensitive) short-circuit to ErrQuit
// without ever reaching the action grammar, per §4.H's explicit-quit exit
// path.
func (d *ReplDriver) Prompt(rendering string) (string, error) {
	fmt.Fprintln(d.out, "----------------------------------------")
	fmt.Fprintln(d.out, rendering)
	fmt.Fprint(d.out, "> ")

	select {
	case <-d.ctx.Done():
		return "", ErrQuit
	case line, ok := <-d.lines:
		if !ok {
			return "", ErrQuit
		}
		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, "quit") || strings.EqualFold(trimmed, "exit") {
			return "", ErrQuit
		}
		return line, nil
	case err := <-d.errs:
		if err == io.EOF {
			return "", ErrQuit
		}
		return "", err
	}
}

// ReportError satisfies scheduler.Driver: it prints a locally-recoverable
// parse/pointer error so the human can retry the same context.
func (d *ReplDriver) ReportError(err error) {
	fmt.Fprintf(d.errOut, "error: %v\n", err)
}

// ReadLine prints promptText and reads a single line through the same
// underlying scanner Prompt uses. It exists so a caller that needs input
// before the first Prompt call (asking for a fresh root question) doesn't
// have to open a second, independent bufio.Scanner over the same stdin —
// which would race the buffered reads of the two scanners.
func (d *ReplDriver) ReadLine(promptText string) (string, error) {
	fmt.Fprint(d.out, promptText)
	select {
	case <-d.ctx.Done():
		return "", ErrQuit
	case line, ok := <-d.lines:
		if !ok {
			return "", ErrQuit
		}
		return line, nil
	case err := <-d.errs:
		if err == io.EOF {
			return "", ErrQuit
		}
		return "", err
	}
}
