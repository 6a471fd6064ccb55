package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/sealedpool/internal/auction"
	"github.com/alanyoungcy/sealedpool/internal/domain"
)

const (
	snapshotLockKey = "snapshot"
	jsonContentType = "application/json"
)

// SnapshotSource produces consistent auction snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (auction.Snapshot, error)
}

// SnapshotConfig controls the exporter.
type SnapshotConfig struct {
	Interval time.Duration
	// MultipartThreshold is the encoded size above which uploads go
	// through the multipart uploader.
	MultipartThreshold int64
	PartSize           int64
}

// Snapshotter periodically writes auction snapshots to
// snapshots/<program>/<unix>.json. With a lock manager, only the replica
// holding the lock exports on a given tick.
type Snapshotter struct {
	source SnapshotSource
	writer domain.BlobWriter
	locks  domain.LockManager
	audit  domain.AuditStore
	cfg    SnapshotConfig
	logger *slog.Logger
}

// NewSnapshotter creates a Snapshotter. locks and audit may be nil.
func NewSnapshotter(
	source SnapshotSource,
	writer domain.BlobWriter,
	locks domain.LockManager,
	audit domain.AuditStore,
	cfg SnapshotConfig,
	logger *slog.Logger,
) *Snapshotter {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Snapshotter{
		source: source,
		writer: writer,
		locks:  locks,
		audit:  audit,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "snapshotter")),
	}
}

// SnapshotPath builds the object key of a snapshot.
//
//	snapshots/0x5ea1...ed/1767323045.json
func SnapshotPath(program domain.Address, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%d.json", strings.ToLower(program.Hex()), at.Unix())
}

// ExportOnce writes one snapshot and returns its key. It returns
// domain.ErrLockHeld when another replica is exporting.
func (s *Snapshotter) ExportOnce(ctx context.Context) (string, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, snapshotLockKey, s.cfg.Interval)
		if err != nil {
			return "", err
		}
		defer unlock()
	}

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("s3blob: snapshot: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return "", fmt.Errorf("s3blob: encode snapshot: %w", err)
	}

	path := SnapshotPath(snap.Program, snap.TakenAt)
	size := int64(buf.Len())
	if s.cfg.MultipartThreshold > 0 && size > s.cfg.MultipartThreshold {
		err = s.writer.PutMultipart(ctx, path, &buf, jsonContentType, s.cfg.PartSize)
	} else {
		err = s.writer.Put(ctx, path, &buf, jsonContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: upload snapshot: %w", err)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, "snapshot", map[string]any{
			"auction": snap.State.Slot.Hex(),
			"path":    path,
			"bids":    len(snap.Bids),
			"bytes":   size,
			"ok":      snap.Invariants.OK,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "snapshot exported",
		slog.String("path", path),
		slog.Int("bids", len(snap.Bids)),
		slog.Int64("bytes", size),
		slog.Bool("invariants_ok", snap.Invariants.OK),
	)
	return path, nil
}

// Run exports on every interval tick until ctx is cancelled.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, err := s.ExportOnce(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLockHeld):
				s.logger.DebugContext(ctx, "another replica holds the snapshot lock")
			case errors.Is(err, domain.ErrNotInitialized):
				s.logger.DebugContext(ctx, "auction not initialized, skipping snapshot")
			default:
				s.logger.ErrorContext(ctx, "snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}
