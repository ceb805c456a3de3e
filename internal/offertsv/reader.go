package offertsv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const maxLineBytes = 1 << 20

// Read parses every non-empty line of r and calls fn with it, stopping at the
// first error or when ctx is done. It returns the number of rows passed to fn.
func Read(ctx context.Context, r io.Reader, fn func(*Row) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	n := 0
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		row, err := Parse(text)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Line = line
			}
			return n, err
		}
		if err := fn(row); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("failed to read offers: %w", err)
	}
	return n, nil
}

// ReadFile opens path and calls Read on it.
func ReadFile(ctx context.Context, path string, fn func(*Row) error) (int, error) {
	f, err := os.Open(path) //nolint:gosec // G304: operator supplied path
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(ctx, f, fn)
}
