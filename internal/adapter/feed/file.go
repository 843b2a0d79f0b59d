package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// FileFeed implements usecase.ActivityFeed from a JSON export: an
// array of raw activity records as produced by chain-data exporters.
type FileFeed struct {
	path string
}

// NewFileFeed creates a FileFeed reading from path.
func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

// Fetch reads the export and returns only the records touching the
// wallet. Ordering and deduplication are the normalizer's job.
func (f *FileFeed) Fetch(ctx context.Context, wallet string) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read activity feed: %w", err)
	}

	var all []domain.RawRecord
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to decode activity feed: %w", err)
	}

	wallet = strings.ToLower(wallet)

	records := make([]domain.RawRecord, 0, len(all))
	for _, rec := range all {
		if strings.ToLower(rec.FromAddress) == wallet || strings.ToLower(rec.ToAddress) == wallet {
			records = append(records, rec)
		}
	}

	return records, nil
}
