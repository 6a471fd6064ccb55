package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/auction"
	"github.com/alanyoungcy/sealedpool/internal/domain"
)

type fakeSource struct {
	snap auction.Snapshot
	err  error
}

func (f fakeSource) Snapshot(context.Context) (auction.Snapshot, error) { return f.snap, f.err }

type upload struct {
	path, contentType string
	multipart         bool
	body              []byte
}

type fakeWriter struct{ uploads []upload }

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, _ := io.ReadAll(data)
	w.uploads = append(w.uploads, upload{path: path, contentType: contentType, body: b})
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, contentType string, _ int64) error {
	b, _ := io.ReadAll(data)
	w.uploads = append(w.uploads, upload{path: path, contentType: contentType, multipart: true, body: b})
	return nil
}

type fakeLocks struct {
	held     bool
	released int
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() { l.released++ }, nil
}

func testSnapshot() auction.Snapshot {
	program := common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	return auction.Snapshot{
		Program: program,
		TakenAt: time.Unix(1767323045, 0).UTC(),
		State:   domain.AuctionState{Slot: common.HexToAddress("0x5107"), MinimumBid: 100},
		Bids: []domain.Bid{
			{Bidder: common.HexToAddress("0x1111"), Amount: 150, Active: true},
		},
		Invariants: auction.InvariantReport{OK: true, ActiveSum: 150, EscrowBalance: 150},
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSnapshotPath(t *testing.T) {
	got := SnapshotPath(common.HexToAddress("0x00000000000000000000000000000000000A11CE"), time.Unix(1767323045, 0))
	assert.Equal(t, "snapshots/0x00000000000000000000000000000000000a11ce/1767323045.json", got)
}

func TestExportOnce(t *testing.T) {
	w := &fakeWriter{}
	locks := &fakeLocks{}
	s := NewSnapshotter(fakeSource{snap: testSnapshot()}, w, locks, nil, SnapshotConfig{Interval: time.Minute}, discard())

	path, err := s.ExportOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SnapshotPath(testSnapshot().Program, testSnapshot().TakenAt), path)
	assert.Equal(t, 1, locks.released)

	require.Len(t, w.uploads, 1)
	assert.False(t, w.uploads[0].multipart)
	assert.Equal(t, "application/json", w.uploads[0].contentType)

	var back auction.Snapshot
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.uploads[0].body)).Decode(&back))
	assert.Equal(t, uint64(150), back.Bids[0].Amount)
	assert.True(t, back.Invariants.OK)
}

func TestExportOnceMultipart(t *testing.T) {
	w := &fakeWriter{}
	s := NewSnapshotter(fakeSource{snap: testSnapshot()}, w, nil, nil, SnapshotConfig{MultipartThreshold: 10}, discard())

	_, err := s.ExportOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, w.uploads, 1)
	assert.True(t, w.uploads[0].multipart)
}

func TestExportOnceSkipsWhenLocked(t *testing.T) {
	w := &fakeWriter{}
	s := NewSnapshotter(fakeSource{snap: testSnapshot()}, w, &fakeLocks{held: true}, nil, SnapshotConfig{}, discard())

	_, err := s.ExportOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Empty(t, w.uploads)
}

func TestExportOnceSourceError(t *testing.T) {
	w := &fakeWriter{}
	s := NewSnapshotter(fakeSource{err: domain.ErrNotInitialized}, w, nil, nil, SnapshotConfig{}, discard())

	_, err := s.ExportOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Empty(t, w.uploads)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("https://e2.example.com", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}
