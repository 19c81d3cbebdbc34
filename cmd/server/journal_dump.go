package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/msuslov84/Chat/pkg/journal"
)

// dumpJournal prints the newest limit membership events, newest first, one
// tab-separated line each.
func dumpJournal(ctx context.Context, w io.Writer, path string, limit int) error {
	if path == "" {
		return errors.New("journal dump: no journal path set")
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	events, err := j.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", ev.At.Format(time.RFC3339), ev.Kind, ev.UserName); err != nil {
			return fmt.Errorf("journal dump: write: %w", err)
		}
	}
	return nil
}
