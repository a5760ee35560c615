package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExportSummary appends the results of a finished game to a text file.
func ExportSummary(sum Summary, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(formatSummary(sum, fileExists)); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func formatSummary(sum Summary, spacing bool) string {
	var sb strings.Builder
	if spacing {
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("Who Took That Photo - Session %s\n", sum.ID))
	sb.WriteString(fmt.Sprintf("Ended: %s\n", sum.EndedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Rounds: %d\n", sum.Rounds))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("Players:\n")
	for _, name := range sum.Players {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}

	type playerScore struct {
		Name  string
		Score int
	}
	scores := make([]playerScore, 0, len(sum.Scores))
	for name, score := range sum.Scores {
		scores = append(scores, playerScore{Name: name, Score: score})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})

	sb.WriteString("\nFinal scores:\n")
	for _, ps := range scores {
		sb.WriteString(fmt.Sprintf("- %s: %d points\n", ps.Name, ps.Score))
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	return sb.String()
}
