package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	economy "github.com/0x5487/economy-engine"
	"github.com/0x5487/economy-engine/protocol"
)

// commandLine is one line of the command feed. The payload is inline JSON
// rather than the base64 bytes protocol.Command would need.
type commandLine struct {
	Version  uint8                `json:"version"`
	SeqID    uint64               `json:"seq_id"`
	Type     protocol.CommandType `json:"type"`
	Payload  json.RawMessage      `json:"payload"`
	Metadata map[string]string    `json:"metadata,omitempty"`
}

const retryDelay = 10 * time.Millisecond

type commandQueue interface {
	EnqueueCommand(cmd *protocol.Command) error
}

// ingest reads newline delimited commands from r and queues them until r is
// exhausted or ctx is done. Malformed or rejected lines are logged and skipped.
// It returns the number of queued commands.
func ingest(ctx context.Context, log *slog.Logger, r io.Reader, q commandQueue) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	queued, lineNo := 0, 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return queued, nil
		}
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var line commandLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			log.Warn("skipping malformed command", "line", lineNo, "error", err)
			continue
		}
		cmd := &protocol.Command{
			Version:  line.Version,
			SeqID:    line.SeqID,
			Type:     line.Type,
			Payload:  line.Payload,
			Metadata: line.Metadata,
		}
		err := q.EnqueueCommand(cmd)
		// a full command channel is back pressure, not a bad command
		for errors.Is(err, economy.ErrTimeout) {
			select {
			case <-ctx.Done():
				return queued, nil
			case <-time.After(retryDelay):
			}
			err = q.EnqueueCommand(cmd)
		}
		switch {
		case errors.Is(err, economy.ErrShutdown):
			return queued, err
		case err != nil:
			log.Warn("command rejected", "line", lineNo, "seq_id", line.SeqID, "error", err)
			continue
		}
		queued++
	}
	if err := scanner.Err(); err != nil {
		return queued, fmt.Errorf("read commands: %w", err)
	}
	return queued, nil
}
