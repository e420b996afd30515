package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// terminalHost implements session.Host for the CLI: opening an item prints
// its content, and the "active item" is simply the last one printed.
type terminalHost struct {
	root string
	out  io.Writer

	mu     sync.Mutex
	active string
}

func newTerminalHost(root string, out io.Writer) *terminalHost {
	return &terminalHost{root: root, out: out}
}

func (h *terminalHost) OpenItem(_ context.Context, path string) error {
	data, err := os.ReadFile(filepath.Join(h.root, filepath.FromSlash(path)))
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.active = path
	h.mu.Unlock()

	fmt.Fprintf(h.out, "\n--- %s ---\n%s\n", path, strings.TrimRight(string(data), "\n"))
	return nil
}

func (h *terminalHost) ActiveItem() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *terminalHost) Notify(msg string) {
	fmt.Fprintln(h.out, msg)
}
