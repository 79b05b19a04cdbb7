package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/assetinventory/internal/store"
)

// ManifestEntry is one asset on an event manifest together with the
// latest history record tying it to the event.
type ManifestEntry struct {
	Asset  Asset          `json:"asset"`
	Record CheckoutRecord `json:"record"`
}

// Manifest is the set of assets associated with an event.
type Manifest struct {
	Event   Event           `json:"event"`
	Entries []ManifestEntry `json:"entries"`
}

// ManifestHeaders are the CSV columns written by WriteManifestCSV.
var ManifestHeaders = []string{"Asset Name", "Asset ID", "Status", "Checked Out By", "Checkout Date", "Notes"}

// EventManifest derives the manifest of an event from checkout history.
// Assets appear once, in the order they were first tied to the event.
// History that points at a deleted asset is skipped.
func (s *Service) EventManifest(ctx context.Context, eventID string) (Manifest, error) {
	event, err := s.inv.Events.Get(ctx, eventID)
	if err != nil {
		return Manifest{}, err
	}

	history, err := s.inv.Checkouts.Filter(ctx, map[string]any{"event_id": eventID})
	if err != nil {
		return Manifest{}, err
	}

	var order []string
	latest := make(map[string]CheckoutRecord)
	for _, rec := range history {
		prev, seen := latest[rec.AssetID]
		if !seen {
			order = append(order, rec.AssetID)
		}
		if !seen || !rec.CheckoutDate.Before(prev.CheckoutDate) {
			latest[rec.AssetID] = rec
		}
	}

	m := Manifest{Event: event, Entries: make([]ManifestEntry, 0, len(order))}
	for _, id := range order {
		asset, err := s.inv.Assets.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("manifest: asset missing", "event_id", eventID, "asset", id)
			continue
		}
		if err != nil {
			return Manifest{}, err
		}
		m.Entries = append(m.Entries, ManifestEntry{Asset: asset, Record: latest[id]})
	}
	return m, nil
}

// WriteManifestCSV writes m as CSV with ManifestHeaders.
func WriteManifestCSV(w io.Writer, m Manifest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ManifestHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range m.Entries {
		date := ""
		if !e.Record.CheckoutDate.IsZero() {
			date = e.Record.CheckoutDate.UTC().Format(time.DateOnly)
		}
		row := []string{
			e.Asset.Name,
			e.Asset.AssetID,
			string(e.Asset.Status),
			e.Record.UserEmail,
			date,
			e.Record.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
