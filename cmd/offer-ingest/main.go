// Command offer-ingest attaches bulk product sets to an offer from large
// gzip-compressed product ID dumps. Feeds export one dump per source system;
// an ID is trusted only when at least two sources agree on it.
//
// The tool makes two concurrent streaming passes over the dumps: pass 1
// builds one bloom filter per file, pass 2 re-streams each file and keeps IDs
// that another file's filter also contains. Surviving IDs are batch-inserted
// into the offer's product set.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/tillgrid/promo-engine/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minIDLen      = 3
	maxIDLen      = 64
	insertBatch   = 5000
)

// fileResult holds candidate IDs found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
		offerID     string
		role        string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing productbaseN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&offerID, "offer-id", "", "offer to attach the product set to")
	flag.StringVar(&role, "role", repository.RoleGroup, "product set role: group, buy, or get")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if offerID == "" {
		slog.Error("offer ID is required: set --offer-id")
		os.Exit(1)
	}
	if role != repository.RoleGroup && role != repository.RoleBuy && role != repository.RoleGet {
		slog.Error("role must be group, buy, or get", slog.String("role", role))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, offerID, role); err != nil {
		slog.Error("offer ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("offer ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, offerID, role string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("productbase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: find IDs appearing in 2+ files.
	slog.Info("pass 2: finding confirmed product IDs")

	validIDs, err := findValidIDs(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid product ids")
	}

	slog.Info("confirmed product IDs", slog.Int("count", len(validIDs)))

	if len(validIDs) == 0 {
		slog.Info("no product IDs to attach")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeProductSet(ctx, repository.NewOfferRepository(pool), offerID, role, validIDs); err != nil {
		return errors.Wrap(err, "write product set")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(id string) {
			if len(id) >= minIDLen && len(id) <= maxIDLen {
				filter.AddString(id)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("ids", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_ids", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidIDs re-streams each file and checks IDs against OTHER files' bloom
// filters. An ID is confirmed if it appears in 2 or more files.
func findValidIDs(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for id, mask := range r.candidates {
			merged[id] |= mask
		}
	}

	// Keep IDs appearing in 2+ files.
	var valid []string
	for id, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, id)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(id string) {
			if len(id) < minIDLen || len(id) > maxIDLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("ids", count),
				)
			}

			// Check whether this ID appears in any OTHER file's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(id) {
					candidates[id] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_ids", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(id string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeProductSet attaches the confirmed IDs to the offer in batches.
func writeProductSet(ctx context.Context, repo *repository.OfferRepository, offerID, role string, ids []string) error {
	slog.Info("attaching product set",
		slog.String("offer", offerID),
		slog.String("role", role),
		slog.Int("count", len(ids)),
	)

	for start := 0; start < len(ids); start += insertBatch {
		end := min(start+insertBatch, len(ids))
		if err := repo.AddOfferProducts(ctx, offerID, role, ids[start:end]); err != nil {
			return errors.Wrapf(err, "attach products %d-%d", start, end)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(ids)))
	}

	return nil
}
