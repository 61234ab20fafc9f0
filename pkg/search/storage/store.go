package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mihai-snyk/coverage-search/pkg/search/archive"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Store persists archive snapshots of finished searches.
type Store interface {
	Init(ctx context.Context) error
	SaveArchive(ctx context.Context, snapshot ArchiveSnapshot) error
	GetArchive(ctx context.Context, runID string) (ArchiveSnapshot, bool, error)
	// ListRuns returns a summary per stored run, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)
}

// Run identifies one search call.
type Run struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	Algorithm        string    `json:"algorithm"`
	ObjectiveManager string    `json:"objectiveManager"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Entry is one archived encoding with the objectives it is champion for.
type Entry struct {
	EncodingID string   `json:"encodingId"`
	Length     int      `json:"length"`
	Encoding   string   `json:"encoding"`
	Objectives []string `json:"objectives"`
}

// ArchiveSnapshot is the serialisable content of an archive after a search.
type ArchiveSnapshot struct {
	SchemaVersion int      `json:"schemaVersion"`
	Run           Run      `json:"run"`
	Covered       []string `json:"covered"`
	Uncovered     []string `json:"uncovered"`
	Entries       []Entry  `json:"entries"`
}

// RunSummary is what ListRuns reports per run.
type RunSummary struct {
	Run
	Covered     int `json:"covered"`
	Objectives  int `json:"objectives"`
	ArchiveSize int `json:"archiveSize"`
}

func (s ArchiveSnapshot) Summary() RunSummary {
	return RunSummary{
		Run:         s.Run,
		Covered:     len(s.Covered),
		Objectives:  len(s.Covered) + len(s.Uncovered),
		ArchiveSize: len(s.Entries),
	}
}

// NewSnapshot captures a. Encodings are rendered with fmt.Stringer when
// they implement it.
func NewSnapshot(run Run, a *archive.Archive, covered, uncovered []framework.ObjectiveFunction) ArchiveSnapshot {
	s := ArchiveSnapshot{
		SchemaVersion: CurrentSchemaVersion,
		Run:           run,
		Covered:       objectiveIDs(covered),
		Uncovered:     objectiveIDs(uncovered),
		Entries:       make([]Entry, 0, a.Size()),
	}
	for _, e := range a.Encodings() {
		entry := Entry{
			EncodingID: string(e.ID()),
			Length:     e.Length(),
			Objectives: objectiveIDs(a.Uses(e)),
		}
		if str, ok := e.(fmt.Stringer); ok {
			entry.Encoding = str.String()
		}
		s.Entries = append(s.Entries, entry)
	}
	return s
}

func objectiveIDs(objectives []framework.ObjectiveFunction) []string {
	out := make([]string, 0, len(objectives))
	for _, o := range objectives {
		out = append(out, string(o.ID()))
	}
	return out
}
