package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

// fakeCreator records each bulk create call and fails the calls listed in
// failOn (1-based).
type fakeCreator struct {
	mu     sync.Mutex
	calls  [][]inventory.Asset
	failOn map[int]bool
	onCall func(n int)
}

func (f *fakeCreator) BulkCreate(_ context.Context, recs []inventory.Asset) ([]inventory.Asset, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]inventory.Asset(nil), recs...))
	n := len(f.calls)
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if f.failOn[n] {
		return nil, errors.New("rate limit exceeded")
	}
	out := make([]inventory.Asset, len(recs))
	for i, r := range recs {
		r.ID = fmt.Sprintf("id-%s", r.AssetID)
		out[i] = r
	}
	return out, nil
}

func (f *fakeCreator) callSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.calls))
	for i, c := range f.calls {
		sizes[i] = len(c)
	}
	return sizes
}

func makeAssets(n int) []inventory.Asset {
	out := make([]inventory.Asset, n)
	for i := range out {
		out[i] = inventory.Asset{
			Name:    fmt.Sprintf("Asset %d", i+1),
			AssetID: fmt.Sprintf("A%03d", i+1),
			Status:  inventory.StatusAvailable,
		}
	}
	return out
}

func newTestCommitter(t *testing.T, store BulkCreator, size int) *Committer {
	t.Helper()
	c, err := NewCommitter(store, CommitOptions{BatchSize: size, BatchDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewCommitter() error = %v", err)
	}
	return c
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// Batching
// =============================================================================

func TestCommitBatchSizesAndProgress(t *testing.T) {
	store := &fakeCreator{}
	c := newTestCommitter(t, store, 5)

	var percents []float64
	res, err := c.Commit(context.Background(), makeAssets(12), func(p BatchProgress) {
		percents = append(percents, p.Percent)
		if p.TotalBatches != 3 {
			t.Errorf("TotalBatches = %d, want 3", p.TotalBatches)
		}
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if got := store.callSizes(); !equalInts(got, []int{5, 5, 2}) {
		t.Errorf("call sizes = %v, want [5 5 2]", got)
	}

	want := []float64{33.3, 66.7, 100}
	if len(percents) != len(want) {
		t.Fatalf("progress reports = %v, want %v", percents, want)
	}
	for i := range want {
		if math.Abs(percents[i]-want[i]) > 0.05 {
			t.Errorf("progress[%d] = %.2f, want %.1f", i, percents[i], want[i])
		}
	}

	if res.Succeeded != 12 || res.Failed != 0 || res.NotAttempted != 0 {
		t.Errorf("succeeded=%d failed=%d not_attempted=%d, want 12/0/0", res.Succeeded, res.Failed, res.NotAttempted)
	}
	if len(res.Created) != 12 || res.Created[0].ID != "id-A001" {
		t.Errorf("created = %d records, first id %q", len(res.Created), res.Created[0].ID)
	}
}

func TestCommitPreservesRecordOrder(t *testing.T) {
	store := &fakeCreator{}
	c := newTestCommitter(t, store, 4)
	records := makeAssets(10)

	if _, err := c.Commit(context.Background(), records, nil); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	i := 0
	for _, call := range store.calls {
		for _, rec := range call {
			if rec.AssetID != records[i].AssetID {
				t.Errorf("record %d = %s, want %s", i, rec.AssetID, records[i].AssetID)
			}
			i++
		}
	}
	if i != len(records) {
		t.Errorf("submitted %d records, want %d", i, len(records))
	}
}

func TestCommitContinuesAfterFailedBatch(t *testing.T) {
	store := &fakeCreator{failOn: map[int]bool{2: true}}
	c := newTestCommitter(t, store, 5)
	records := makeAssets(12)

	res, err := c.Commit(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if got := store.callSizes(); !equalInts(got, []int{5, 5, 2}) {
		t.Errorf("call sizes = %v, want [5 5 2]", got)
	}
	if res.Succeeded != 7 {
		t.Errorf("Succeeded = %d, want 7", res.Succeeded)
	}
	if res.Failed != 5 {
		t.Errorf("Failed = %d, want 5", res.Failed)
	}
	if len(res.FailedRecords) != 5 {
		t.Fatalf("FailedRecords = %d, want 5", len(res.FailedRecords))
	}
	for i, rec := range res.FailedRecords {
		if rec.AssetID != records[5+i].AssetID {
			t.Errorf("FailedRecords[%d] = %s, want %s", i, rec.AssetID, records[5+i].AssetID)
		}
	}

	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %d, want 1", len(res.Errors))
	}
	if res.Errors[0].Batch != 2 || res.Errors[0].Size != 5 {
		t.Errorf("error batch=%d size=%d, want 2/5", res.Errors[0].Batch, res.Errors[0].Size)
	}
	if res.Batches[1].Error == "" || res.Batches[1].Failed != 5 {
		t.Errorf("batch 2 result = %+v", res.Batches[1])
	}
}

func TestCommitEmptyRecords(t *testing.T) {
	store := &fakeCreator{}
	c := newTestCommitter(t, store, 5)

	res, err := c.Commit(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(store.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(store.calls))
	}
	if res.Total != 0 || len(res.Batches) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestCommitCancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeCreator{onCall: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	c, err := NewCommitter(store, CommitOptions{BatchSize: 5, BatchDelay: time.Second})
	if err != nil {
		t.Fatalf("NewCommitter() error = %v", err)
	}

	start := time.Now()
	res, err := c.Commit(ctx, makeAssets(12), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Commit() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancellation did not interrupt the batch delay")
	}
	if !res.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if len(store.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(store.calls))
	}
	if res.Succeeded != 5 || res.NotAttempted != 7 {
		t.Errorf("succeeded=%d not_attempted=%d, want 5/7", res.Succeeded, res.NotAttempted)
	}
}

func TestNewCommitterValidation(t *testing.T) {
	tests := []struct {
		name    string
		store   BulkCreator
		opts    CommitOptions
		wantErr bool
	}{
		{"valid", &fakeCreator{}, CommitOptions{BatchSize: 5, BatchDelay: 2 * time.Second}, false},
		{"zero delay", &fakeCreator{}, CommitOptions{BatchSize: 1}, false},
		{"nil store", nil, CommitOptions{BatchSize: 5}, true},
		{"zero size", &fakeCreator{}, CommitOptions{BatchSize: 0}, true},
		{"negative size", &fakeCreator{}, CommitOptions{BatchSize: -1}, true},
		{"negative delay", &fakeCreator{}, CommitOptions{BatchSize: 5, BatchDelay: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommitter(tt.store, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCommitter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
