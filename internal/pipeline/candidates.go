package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ashare-lab/screener/internal/contracts"
)

// CandidateEntry is one line of the candidates JSONL export, consumed by
// downstream portfolio tooling.
type CandidateEntry struct {
	ItemID         string                   `json:"item_id"`
	Ticker         string                   `json:"ticker"`
	Mode           string                   `json:"mode"`
	FinalScore     float64                  `json:"final_score"`
	ScoreBreakdown contracts.ScoreBreakdown `json:"score_breakdown"`
	DataDate       string                   `json:"data_date"`
	SnapshotID     string                   `json:"snapshot_id"`
	ThemeHits      []contracts.ThemeHit     `json:"theme_hits"`
	ConceptHits    []contracts.ConceptHit   `json:"concept_hits"`
}

// modeOrder ranks export modes in the merged file. Unknown modes sort
// last.
var modeOrder = map[string]int{
	"enhanced":  0,
	"tech_only": 1,
	"all":       2,
}

// WriteCandidates merges this run's results into the candidates file:
// existing entries of the same mode are replaced, other modes survive.
// The merged file is sorted by mode, score descending, then item id.
func WriteCandidates(rep *contracts.Report, mode, path, snapshotID string) error {
	existing := loadCandidates(path)

	merged := make([]CandidateEntry, 0, len(existing)+len(rep.Results))
	for _, entry := range existing {
		if entry.Mode != mode {
			merged = append(merged, entry)
		}
	}
	for _, row := range rep.Results {
		themeHits := row.ThemeHits
		if themeHits == nil {
			themeHits = []contracts.ThemeHit{}
		}
		conceptHits := row.ReasonStruct.ConceptHits
		if conceptHits == nil {
			conceptHits = []contracts.ConceptHit{}
		}
		merged = append(merged, CandidateEntry{
			ItemID:         row.Ticker,
			Ticker:         row.Ticker,
			Mode:           mode,
			FinalScore:     row.FinalScore,
			ScoreBreakdown: row.ScoreBreakdown,
			DataDate:       row.DataDate,
			SnapshotID:     snapshotID,
			ThemeHits:      themeHits,
			ConceptHits:    conceptHits,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		oi, oj := candidateModeRank(merged[i].Mode), candidateModeRank(merged[j].Mode)
		if oi != oj {
			return oi < oj
		}
		if merged[i].FinalScore != merged[j].FinalScore {
			return merged[i].FinalScore > merged[j].FinalScore
		}
		return merged[i].ItemID < merged[j].ItemID
	})

	return writeCandidateEntries(merged, path)
}

func candidateModeRank(mode string) int {
	if rank, ok := modeOrder[mode]; ok {
		return rank
	}
	return 9
}

// loadCandidates reads the existing JSONL file. Unparseable lines are
// skipped; a missing file is an empty list.
func loadCandidates(path string) []CandidateEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []CandidateEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry CandidateEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func writeCandidateEntries(entries []CandidateEntry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create candidates dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create candidates file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal candidate entry: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write candidate entry: %w", err)
		}
	}
	return w.Flush()
}
