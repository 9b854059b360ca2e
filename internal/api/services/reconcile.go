package services

import (
	"context"
	"sort"

	"github.com/rohits-web03/lockbox/internal/models"
	"github.com/rohits-web03/lockbox/internal/repositories"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Report lists where the blob store and the record store disagree.
type Report struct {
	Blobs            int      `json:"blobs"`
	Records          int      `json:"records"`
	OrphanBlobs      []string `json:"orphan_blobs"`
	MissingBlobs     []string `json:"missing_blobs"`
	DuplicateRecords []string `json:"duplicate_records"`
}

func (r Report) Consistent() bool {
	return len(r.OrphanBlobs) == 0 && len(r.MissingBlobs) == 0 && len(r.DuplicateRecords) == 0
}

// Reconciler compares both stores. It only reads.
type Reconciler struct {
	blobs   *repositories.BlobGateway
	records *repositories.RecordRepository
	log     zerolog.Logger
}

func NewReconciler(blobs *repositories.BlobGateway, records *repositories.RecordRepository, log zerolog.Logger) *Reconciler {
	return &Reconciler{blobs: blobs, records: records, log: log}
}

func (r *Reconciler) Scan(ctx context.Context) (Report, error) {
	var (
		keys []string
		recs []models.FileRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keys, err = r.blobs.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recs, err = r.records.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		Blobs:            len(keys),
		Records:          len(recs),
		OrphanBlobs:      []string{},
		MissingBlobs:     []string{},
		DuplicateRecords: []string{},
	}

	blobSet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		blobSet[k] = struct{}{}
	}

	perPath := make(map[string]int, len(recs))
	for _, rec := range recs {
		perPath[rec.Path()]++
	}

	for path, n := range perPath {
		if _, ok := blobSet[path]; !ok {
			report.MissingBlobs = append(report.MissingBlobs, path)
		}
		if n > 1 {
			report.DuplicateRecords = append(report.DuplicateRecords, path)
		}
	}
	for _, k := range keys {
		if _, ok := perPath[k]; !ok {
			report.OrphanBlobs = append(report.OrphanBlobs, k)
		}
	}

	sort.Strings(report.MissingBlobs)
	sort.Strings(report.DuplicateRecords)
	sort.Strings(report.OrphanBlobs)

	r.log.Info().
		Int("blobs", report.Blobs).
		Int("records", report.Records).
		Int("orphan_blobs", len(report.OrphanBlobs)).
		Int("missing_blobs", len(report.MissingBlobs)).
		Int("duplicate_records", len(report.DuplicateRecords)).
		Msg("reconciliation finished")
	return report, nil
}
