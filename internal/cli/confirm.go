package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks yes/no questions, one at a time. It keeps its buffered
// reader across questions read from the same input.
type Prompter struct {
	mu     sync.Mutex
	src    io.Reader
	reader *bufio.Reader
}

// Confirm writes "title" and "content" to out and reads one answer from
// in. Only y or yes confirms; end of input cancels.
func (p *Prompter) Confirm(in io.Reader, out io.Writer, title, content string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src != in {
		p.src = in
		p.reader = bufio.NewReader(in)
	}

	fmt.Fprintf(out, "%s\n%s [y/N]: ", title, content)
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// confirmDelete asks before deleting kind id unless --yes was given.
func (a *app) confirmDelete(in io.Reader, out io.Writer, kind, id string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	return a.prompter.Confirm(in, out,
		fmt.Sprintf("Delete this %s?", kind),
		fmt.Sprintf("The %s %s will be deleted.", kind, id))
}
