// Command promo-ingest bulk loads promotions from gzip-compressed JSON-lines
// files. Files are parsed concurrently; when a code appears more than once
// the first occurrence in argument order wins.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
	"github.com/sanisidro/sanisidro-api/internal/repository"
)

const (
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
	progressEvery = 1000
)

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
		dryRun      bool
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory searched for *.jsonl.gz when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "concurrent database writers")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	flag.Parse()

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			lg.Fatal("Bad data dir", zap.Error(err))
		}
		sort.Strings(matches)
		files = matches
	}
	if len(files) == 0 {
		lg.Fatal("No input files", zap.String("data_dir", dataDir))
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, files, databaseURL, workers, dryRun); err != nil {
		lg.Fatal("Promotion ingest failed", zap.Error(err))
	}
	lg.Info("Promotion ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, files []string, databaseURL string, workers int, dryRun bool) error {
	lg.Info("Parsing files", zap.Int("files", len(files)))

	parsed, err := parseFiles(ctx, lg, files)
	if err != nil {
		return errors.Wrap(err, "parse files")
	}

	promos, dropped := dedupe(parsed)
	lg.Info("Promotions parsed",
		zap.Int("unique", len(promos)),
		zap.Int("duplicates", dropped),
	)
	if dryRun || len(promos) == 0 {
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL, int32(workers))
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewPromotionRepository(pool)
	return write(ctx, lg, promotion.NewService(repo, repo, nil), promos, workers)
}

// parseFiles reads every file concurrently. The result is indexed like files.
func parseFiles(ctx context.Context, lg *zap.Logger, files []string) ([][]promotion.Promotion, error) {
	out := make([][]promotion.Promotion, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			promos, err := readFile(ctx, path)
			if err != nil {
				return err
			}
			lg.Info("File parsed", zap.String("file", path), zap.Int("promotions", len(promos)))
			out[i] = promos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readFile decompresses path and parses one promotion per non-empty line.
func readFile(ctx context.Context, path string) ([]promotion.Promotion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var (
		promos []promotion.Promotion
		line   int
	)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := scanner.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		p, err := parseRecord(b)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, line)
		}
		promos = append(promos, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}
	return promos, nil
}

// dedupe flattens parsed in order and drops repeated codes, keeping the
// first occurrence. Only codes flagged by a bloom filter reach the exact set.
func dedupe(parsed [][]promotion.Promotion) (unique []promotion.Promotion, dropped int) {
	filters, repeats := buildFilters(parsed)
	candidates := findCandidates(parsed, filters, repeats)

	seen := make(map[string]struct{}, len(candidates))
	for _, promos := range parsed {
		for _, p := range promos {
			code := promotion.NormalizeCode(p.Code)
			if _, ok := candidates[code]; ok {
				if _, dup := seen[code]; dup {
					dropped++
					continue
				}
				seen[code] = struct{}{}
			}
			unique = append(unique, p)
		}
	}
	return unique, dropped
}

// buildFilters creates one bloom filter per file, concurrently. A code that
// already tests positive in its own file's filter is reported as a repeat.
func buildFilters(parsed [][]promotion.Promotion) ([]*bloom.BloomFilter, [][]string) {
	filters := make([]*bloom.BloomFilter, len(parsed))
	repeats := make([][]string, len(parsed))

	var g errgroup.Group
	for i, promos := range parsed {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(uint(max(len(promos), 1)), bloomFPR)
			for _, p := range promos {
				code := promotion.NormalizeCode(p.Code)
				if filter.TestOrAddString(code) {
					repeats[i] = append(repeats[i], code)
				}
			}
			filters[i] = filter
			return nil
		})
	}
	_ = g.Wait()
	return filters, repeats
}

// findCandidates tests every code against the filters of earlier files and
// merges the hits with the per-file repeats. Codes outside the result occur
// exactly once across all files.
func findCandidates(parsed [][]promotion.Promotion, filters []*bloom.BloomFilter, repeats [][]string) map[string]struct{} {
	hits := make([][]string, len(parsed))

	var g errgroup.Group
	for i, promos := range parsed {
		if i == 0 {
			continue
		}
		g.Go(func() error {
			for _, p := range promos {
				code := promotion.NormalizeCode(p.Code)
				for _, f := range filters[:i] {
					if f.TestString(code) {
						hits[i] = append(hits[i], code)
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	candidates := make(map[string]struct{})
	for i := range parsed {
		for _, code := range repeats[i] {
			candidates[code] = struct{}{}
		}
		for _, code := range hits[i] {
			candidates[code] = struct{}{}
		}
	}
	return candidates
}

// write upserts promos using up to workers concurrent writers.
func write(ctx context.Context, lg *zap.Logger, svc *promotion.Service, promos []promotion.Promotion, workers int) error {
	lg.Info("Writing promotions", zap.Int("count", len(promos)), zap.Int("workers", workers))

	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range promos {
		p := &promos[i]
		g.Go(func() error {
			if err := svc.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert %s", p.Code)
			}
			if n := written.Add(1); n%progressEvery == 0 {
				lg.Info("Write progress", zap.Int64("written", n), zap.Int("total", len(promos)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	lg.Info("Promotions written", zap.Int64("written", written.Load()))
	return nil
}
