package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// QueueInput is an InputSource backed by a fixed list of prompts,
// useful for scripted/batch runs and tests. Once exhausted it returns
// ErrNoMoreInput.
type QueueInput struct {
	prompts []string
	i       int
}

// NewQueueInput returns a QueueInput over prompts, consumed in order.
func NewQueueInput(prompts []string) *QueueInput {
	return &QueueInput{prompts: prompts}
}

func (q *QueueInput) NextInput(ctx context.Context) (string, error) {
	if q.i >= len(q.prompts) {
		return "", ErrNoMoreInput
	}
	p := q.prompts[q.i]
	q.i++
	return p, nil
}

// ScannerInput reads one prompt per line from r, stopping at EOF.
type ScannerInput struct {
	scanner *bufio.Scanner
}

// NewScannerInput wraps r (typically os.Stdin) as a line-at-a-time
// InputSource.
func NewScannerInput(r io.Reader) *ScannerInput {
	return &ScannerInput{scanner: bufio.NewScanner(r)}
}

func (s *ScannerInput) NextInput(ctx context.Context) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrNoMoreInput
	}
	return s.scanner.Text(), nil
}

// REPLInput is the interactive terminal InputSource: it prints a prompt
// before each read, serves any initial queued prompts first (e.g. a
// one-shot CLI argument), then falls back to reading lines from r for
// the rest of the session.
type REPLInput struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string
	initial []string
	i       int
}

// NewREPLInput wraps r as a prompt-printing InputSource. initial, if
// non-empty, is drained before the first read from r.
func NewREPLInput(r io.Reader, out io.Writer, initial ...string) *REPLInput {
	return &REPLInput{
		scanner: bufio.NewScanner(r),
		out:     out,
		prompt:  "> ",
		initial: initial,
	}
}

func (p *REPLInput) NextInput(ctx context.Context) (string, error) {
	if p.i < len(p.initial) {
		v := p.initial[p.i]
		p.i++
		return v, nil
	}

	fmt.Fprint(p.out, p.prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrNoMoreInput
	}
	return p.scanner.Text(), nil
}
