// Package console plays the quiz in a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/victornm/moviequiz/internal/game"
)

// Game is the subset of the presenter the console drives.
type Game interface {
	Answer(ctx context.Context, yes bool)
	Retry(ctx context.Context)
}

// View prints the game to a writer. It implements game.View.
type View struct {
	mu  sync.Mutex
	out io.Writer
	ack func()
}

func NewView(out io.Writer) *View {
	return &View{out: out}
}

func (v *View) ShowQuestion(text string, image []byte, counter string) {
	v.printf("\nQuestion %s\n[poster: %s, %d bytes]\n%s\n[y]es / [n]o > ",
		counter, http.DetectContentType(image), len(image), text)
}

func (v *View) ShowAnswerFeedback(correct bool) {
	if correct {
		v.printf("Correct!\n")
		return
	}
	v.printf("Wrong!\n")
}

func (v *View) ShowLoading() {
	v.printf("Loading...\n")
}

func (v *View) HideLoading() {}

func (v *View) ShowRetryableError(message string) {
	v.printf("\nError: %s\n[r] Try again > ", message)
}

func (v *View) ShowResults(r game.Results, onAcknowledge func()) {
	v.mu.Lock()
	v.ack = onAcknowledge
	v.mu.Unlock()

	v.printf("\n%s\n%s\n[enter] %s > ", r.Title, r.Text, r.ButtonText)
}

// acknowledge runs the pending results callback, if any.
func (v *View) acknowledge() bool {
	v.mu.Lock()
	ack := v.ack
	v.ack = nil
	v.mu.Unlock()

	if ack == nil {
		return false
	}
	ack()
	return true
}

func (v *View) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := fmt.Fprintf(v.out, format, args...); err != nil {
		slog.Warn("console: write failed", "error", err)
	}
}

// Run forwards commands read line by line from in until EOF, "q" or ctx is done.
func Run(ctx context.Context, in io.Reader, v *View, g Game) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		s := bufio.NewScanner(in)
		for s.Scan() {
			select {
			case lines <- s.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- s.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				g.Answer(ctx, true)
			case "n", "no":
				g.Answer(ctx, false)
			case "r", "retry":
				g.Retry(ctx)
			case "q", "quit":
				return nil
			case "":
				if !v.acknowledge() {
					slog.DebugContext(ctx, "console: nothing to acknowledge")
				}
			default:
				v.printf("unknown command %q, use y, n, r or q > ", line)
			}
		}
	}
}
