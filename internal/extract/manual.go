package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
)

// ClipboardModel is a Model backed by a human: the prompt is copied to the
// clipboard, pasted into any chat UI, and the answer is read back from the
// clipboard once the user presses Enter.
type ClipboardModel struct {
	in    *bufio.Reader
	out   io.Writer
	write func(string) error
	read  func() (string, error)
}

// NewClipboardModel prompts on out and waits for Enter on in
func NewClipboardModel(in io.Reader, out io.Writer) *ClipboardModel {
	return &ClipboardModel{
		in:    bufio.NewReader(in),
		out:   out,
		write: clipboard.WriteAll,
		read:  clipboard.ReadAll,
	}
}

// Complete copies the combined prompt and returns the copied answer
func (m *ClipboardModel) Complete(ctx context.Context, system, user string) (string, error) {
	prompt := system + "\n\n---\n\n" + user
	if err := m.write(prompt); err != nil {
		return "", fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	fmt.Fprintln(m.out, "Extraction prompt copied to clipboard.")
	fmt.Fprintln(m.out, "Paste it into your LLM, copy the JSON answer, then press Enter (or type 'skip').")

	line, err := m.readLine(ctx)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(strings.TrimSpace(line), "skip") {
		return "", fmt.Errorf("skipped by user")
	}

	data, err := m.read()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	if strings.TrimSpace(data) == "" {
		return "", fmt.Errorf("clipboard is empty")
	}
	if data == prompt {
		return "", fmt.Errorf("clipboard still holds the prompt")
	}
	return data, nil
}

func (m *ClipboardModel) readLine(ctx context.Context) (string, error) {
	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := m.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- lineResult{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}
