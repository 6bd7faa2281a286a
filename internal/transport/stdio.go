package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aqaranewbiz/mysql-server/internal/logger"
)

const maxFrameSize = 16 * 1024 * 1024

// ServeStdio reads newline-delimited frames from in and writes one response
// line per frame to out, strictly in order. It returns nil on EOF.
func ServeStdio(ctx context.Context, d Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	w := bufio.NewWriter(out)

	logger.Info("Serving JSON-RPC over stdio")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		resp := d.Handle(ctx, line)
		if _, err := w.Write(append(resp, '\n')); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	logger.Info("stdin closed, stopping stdio transport")
	return nil
}
