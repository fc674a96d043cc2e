// Package repl runs the line-oriented question loop on stdin and stdout.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"docqa/internal/domain"
)

const (
	// Prompt is printed before each question.
	Prompt = "Question: "
	// ReadyMessage is printed once before the first prompt.
	ReadyMessage = "System ready. Type questions or 'exit'."

	snippetLen = 200
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	source  = color.New(color.FgYellow)
)

// IsExit reports whether line ends the session.
func IsExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

// Run reads one question per line from in until an exit word, EOF, or ctx is
// done. An error from answerer ends the loop and is returned. Cancelling ctx
// returns immediately, even while waiting for input.
func Run(ctx context.Context, in io.Reader, out io.Writer, answerer domain.Answerer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, readErr := readLines(ctx, in)

	fmt.Fprintln(out, ReadyMessage)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, Prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-readErr:
					return err
				default:
					return ctx.Err()
				}
			}
			line = l
		}

		q := strings.TrimSpace(line)
		if q == "" {
			continue
		}
		if IsExit(q) {
			return nil
		}

		ans, err := answerer.Answer(ctx, q)
		if err != nil {
			return err
		}
		PrintAnswer(out, ans)
	}
}

// readLines scans in on its own goroutine so a blocked read never delays
// cancellation. The scan error, if any, is sent before lines is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// PrintAnswer writes the answer followed by one line per source chunk.
func PrintAnswer(out io.Writer, ans domain.Answer) {
	fmt.Fprintln(out)
	heading.Fprintln(out, "--- ANSWER ---")
	fmt.Fprintln(out, ans.Answer)
	fmt.Fprintln(out)
	heading.Fprintln(out, "--- SOURCES ---")
	for _, c := range ans.SourceDocuments {
		fmt.Fprintf(out, "- %s | %s...\n", source.Sprint(c.Metadata.Source()), Snippet(c.Content))
	}
	fmt.Fprintln(out)
}

// Snippet returns the first 200 characters of text on a single line.
func Snippet(text string) string {
	r := []rune(text)
	if len(r) > snippetLen {
		r = r[:snippetLen]
	}
	return strings.ReplaceAll(string(r), "\n", " ")
}
