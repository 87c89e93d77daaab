package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
)

type dlqAdmin interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

// runDLQCommand handles the one-shot maintenance modes of the binary.
// It reports whether a command ran.
func runDLQCommand(ctx context.Context, out io.Writer, dlq dlqAdmin, list bool, requeue string, limit int) (bool, error) {
	switch {
	case requeue != "":
		id, err := uuid.Parse(requeue)
		if err != nil {
			return true, fmt.Errorf("invalid event id %q: %w", requeue, err)
		}
		if err := dlq.Requeue(ctx, id); err != nil {
			return true, fmt.Errorf("requeue %s: %w", id, err)
		}
		_, err = fmt.Fprintf(out, "requeued %s\n", id)
		return true, err
	case list:
		entries, err := dlq.List(ctx, limit)
		if err != nil {
			return true, err
		}
		return true, printDLQ(out, entries)
	}
	return false, nil
}

func printDLQ(out io.Writer, entries []models.OutboxDLQ) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tTYPE\tAGGREGATE\tREASON\tATTEMPTS\tFAILED AT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.EventID, e.EventType, e.AggregateID, e.ErrorReason, e.AttemptCount, e.FailedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return w.Flush()
}
