package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"klendrisk/native/lending"
	"klendrisk/native/lending/snapshot"
	"klendrisk/observability"
	"klendrisk/services/riskd/middleware"
)

// Snapshot sources recorded with each stored snapshot.
const (
	SourceFile    = "file"
	SourceAPI     = "api"
	SourceRestore = "restore"
)

// IngestResult describes a published snapshot.
type IngestResult struct {
	Market    lending.Address `json:"market"`
	Slot      uint64          `json:"slot"`
	Digest    string          `json:"digest"`
	Reserves  int             `json:"reserves"`
	Duplicate bool            `json:"duplicate"`
}

// Ingest validates snap, persists it when storage is configured and swaps it
// into the registry.
func (s *Server) Ingest(ctx context.Context, snap *snapshot.Snapshot, source, subject string) (result IngestResult, err error) {
	defer func() {
		outcome := observability.SnapshotStored
		switch {
		case err != nil:
			outcome = observability.SnapshotRejected
		case result.Duplicate:
			outcome = observability.SnapshotDuplicate
		}
		observability.Snapshots().RecordIngest(source, outcome)
	}()

	if s.engineCfg != nil {
		snap.Config = *s.engineCfg
	}
	entry, err := s.registry.Build(snap)
	if err != nil {
		return IngestResult{}, err
	}
	duplicate := false
	if current, err := s.registry.Get(entry.Market.Address()); err == nil && current.Digest == entry.Digest {
		duplicate = true
	}
	if s.store != nil && source != SourceRestore {
		payload, err := snap.Canonical()
		if err != nil {
			return IngestResult{}, fmt.Errorf("encode snapshot: %w", err)
		}
		_, created, err := s.store.SaveSnapshot(ctx, entry.Market.Address(), entry.Slot, source, subject, payload)
		if err != nil {
			return IngestResult{}, err
		}
		duplicate = duplicate || !created
	}
	s.registry.Publish(entry)
	refreshMetrics(entry)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "snapshot published",
		slog.String("market", entry.Market.Address().String()),
		slog.Uint64("slot", entry.Slot),
		slog.String("digest", entry.Digest),
		slog.Bool("duplicate", duplicate),
		slog.String("source", source),
	)
	return IngestResult{
		Market:    entry.Market.Address(),
		Slot:      entry.Slot,
		Digest:    entry.Digest,
		Reserves:  len(entry.Market.Reserves()),
		Duplicate: duplicate,
	}, nil
}

// LoadFile ingests a snapshot file from disk.
func (s *Server) LoadFile(ctx context.Context, path string) (IngestResult, error) {
	snap, err := snapshot.Load(path)
	if err != nil {
		return IngestResult{}, err
	}
	return s.Ingest(ctx, snap, SourceFile, "")
}

// Restore republishes the newest stored snapshot of every market.
func (s *Server) Restore(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	records, err := s.store.LatestSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, record := range records {
		snap, err := snapshot.Decode(record.Payload, snapshot.FormatJSON)
		if err != nil {
			return restored, fmt.Errorf("restore %s: %w", record.Digest, err)
		}
		if _, err := s.Ingest(ctx, snap, SourceRestore, ""); err != nil {
			return restored, fmt.Errorf("restore %s: %w", record.Digest, err)
		}
		restored++
	}
	return restored, nil
}

func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := requestFormat(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "snapshot too large")
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: read body: %v", errBadRequest, err))
		return
	}
	snap, err := snapshot.Decode(body, format)
	if err != nil {
		if !errors.Is(err, snapshot.ErrMissingMarket) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		s.writeError(w, r, err)
		return
	}
	if market := pathAddress(r, "market"); snap.Market.Address != market {
		s.writeError(w, r, fmt.Errorf("%w: snapshot is for market %s, not %s", errBadRequest, snap.Market.Address, market))
		return
	}
	result, err := s.Ingest(r.Context(), snap, SourceAPI, middleware.SubjectFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func requestFormat(r *http.Request) (snapshot.Format, error) {
	if name := r.URL.Query().Get("format"); name != "" {
		return snapshot.ParseFormat(name)
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return snapshot.FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: content type %q", errBadRequest, contentType)
	}
	return snapshot.ParseFormat(mediaType)
}
