// SPDX-License-Identifier: MIT

package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/renameio/v2"
)

var csvHeader = []string{"id", "at", "session_id", "request_id", "operation", "token", "outcome", "message", "title", "purchaser", "fallback"}

// WriteCSV writes entries as CSV with a header row.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{
			e.ID,
			e.At.UTC().Format(time.RFC3339),
			e.SessionID,
			e.RequestID,
			string(e.Operation),
			e.Token,
			e.State.String(),
			e.Message,
			e.Title,
			e.Purchaser,
			strconv.FormatBool(e.Fallback),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the entries matching f to path atomically: readers see
// either the previous file or the complete new one.
func (s *Store) Export(ctx context.Context, path string, f Filter) (int, error) {
	entries, err := s.Recent(ctx, f)
	if err != nil {
		return 0, err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return 0, fmt.Errorf("create pending export file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := WriteCSV(pending, entries); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("atomically replace export file: %w", err)
	}
	return len(entries), nil
}
