package game

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Exporter appends a transcript of every finished round to a text file.
type Exporter struct {
	Filename string
	mu       sync.Mutex
}

func NewExporter(filename string) *Exporter {
	return &Exporter{Filename: filename}
}

func (e *Exporter) Deliver(_ context.Context, evt Event) error {
	if evt.Name != EventRoundEnded {
		return nil
	}
	sum, ok := evt.Payload.(RoundSummary)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", evt.Name, evt.Payload)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return ExportRound(sum, e.Filename)
}

// ExportRound appends the summary of a finished round to filename.
func ExportRound(sum RoundSummary, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session %s - Round %d: %q\n", sum.Pin, sum.CurrentRound.ID, sum.CurrentRound.Name))
	sb.WriteString(fmt.Sprintf("Ended: %s\n", sum.EndedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("-", 40) + "\n")

	if len(sum.PosedQuestions) > 0 {
		sb.WriteString("Questions:\n")
		for _, q := range sum.PosedQuestions {
			sb.WriteString(fmt.Sprintf("- %s\n", q.Prompt))
		}
	}

	sb.WriteString("\nScores after this round:\n")
	for i, p := range ranking(sum.GamePlayers) {
		sb.WriteString(fmt.Sprintf("%d. %s: %d point(s)\n", i+1, p.Username, p.Points))
	}
	sb.WriteString("\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
