package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Sentinel errors for inventory operations.
var (
	ErrHasChildren  = errors.New("record has child records")
	ErrInvalidState = errors.New("asset is not in a valid state for this action")
	ErrConfirmation = errors.New("confirmation text does not match")
	ErrValidation   = errors.New("invalid record")
)

// MassDeleteConfirmation must be passed verbatim to MassDeleteAssets.
const MassDeleteConfirmation = "DELETE ALL ASSETS"

const treeCacheSize = 8

// Service implements inventory operations on top of an Inventory.
type Service struct {
	inv   *Inventory
	trees *lru.Cache[string, *Forest]
	now   func() time.Time
}

// NewService creates a Service. The tree cache holds one forest per
// hierarchical kind.
func NewService(inv *Inventory) (*Service, error) {
	cache, err := lru.New[string, *Forest](treeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create tree cache: %w", err)
	}
	return &Service{inv: inv, trees: cache, now: time.Now}, nil
}

// Inventory returns the underlying repositories.
func (s *Service) Inventory() *Inventory {
	return s.inv
}

// ============================================================================
// Trees
// ============================================================================

// CategoryTree returns the category forest, building it on first use.
func (s *Service) CategoryTree(ctx context.Context) (*Forest, error) {
	if f, ok := s.trees.Get(KindCategory); ok {
		return f, nil
	}
	cats, err := s.inv.Categories.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	f, err := BuildTree(CategoryNodes(cats))
	if err != nil {
		return nil, fmt.Errorf("category tree: %w", err)
	}
	s.trees.Add(KindCategory, f)
	return f, nil
}

// LocationTree returns the location forest, building it on first use.
func (s *Service) LocationTree(ctx context.Context) (*Forest, error) {
	if f, ok := s.trees.Get(KindLocation); ok {
		return f, nil
	}
	locs, err := s.inv.Locations.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	f, err := BuildTree(LocationNodes(locs))
	if err != nil {
		return nil, fmt.Errorf("location tree: %w", err)
	}
	s.trees.Add(KindLocation, f)
	return f, nil
}

// CreateCategory stores c after checking its parent exists.
func (s *Service) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrValidation)
	}
	if c.ParentCategoryID != "" {
		if _, err := s.inv.Categories.Get(ctx, c.ParentCategoryID); err != nil {
			return Category{}, fmt.Errorf("parent category: %w", err)
		}
	}
	out, err := s.inv.Categories.Create(ctx, c)
	if err != nil {
		return Category{}, err
	}
	s.trees.Remove(KindCategory)
	return out, nil
}

// CreateLocation stores l after checking its parent exists.
func (s *Service) CreateLocation(ctx context.Context, l Location) (Location, error) {
	if strings.TrimSpace(l.Name) == "" {
		return Location{}, fmt.Errorf("%w: location name is required", ErrValidation)
	}
	if l.ParentLocationID != "" {
		if _, err := s.inv.Locations.Get(ctx, l.ParentLocationID); err != nil {
			return Location{}, fmt.Errorf("parent location: %w", err)
		}
	}
	out, err := s.inv.Locations.Create(ctx, l)
	if err != nil {
		return Location{}, err
	}
	s.trees.Remove(KindLocation)
	return out, nil
}

// MoveLocation re-parents a location. An empty parentID makes it a root.
// Moving a location under itself or one of its descendants fails with
// *CycleError.
func (s *Service) MoveLocation(ctx context.Context, id, parentID string) (Location, error) {
	if parentID != "" {
		if _, err := s.inv.Locations.Get(ctx, parentID); err != nil {
			return Location{}, fmt.Errorf("parent location: %w", err)
		}
	}
	tree, err := s.LocationTree(ctx)
	if err != nil {
		return Location{}, err
	}
	if parentID == id {
		return Location{}, &CycleError{Path: []string{id, id}}
	}
	for _, d := range tree.Descendants(id) {
		if d == parentID {
			return Location{}, &CycleError{Path: append(tree.Path(parentID), id)}
		}
	}
	out, err := s.inv.Locations.Update(ctx, id, map[string]any{"parent_location_id": parentID})
	if err != nil {
		return Location{}, err
	}
	s.trees.Remove(KindLocation)
	return out, nil
}

// DeleteLocation removes a location that has no child locations.
func (s *Service) DeleteLocation(ctx context.Context, id string) error {
	children, err := s.inv.Locations.Filter(ctx, map[string]any{"parent_location_id": id})
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("location %s has %d sub-locations: %w", id, len(children), ErrHasChildren)
	}
	if err := s.inv.Locations.Delete(ctx, id); err != nil {
		return err
	}
	s.trees.Remove(KindLocation)
	return nil
}

// DeleteCategory removes a category that has no child categories.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	children, err := s.inv.Categories.Filter(ctx, map[string]any{"parent_category_id": id})
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("category %s has %d sub-categories: %w", id, len(children), ErrHasChildren)
	}
	if err := s.inv.Categories.Delete(ctx, id); err != nil {
		return err
	}
	s.trees.Remove(KindCategory)
	return nil
}

// ============================================================================
// Checkout history
// ============================================================================

// CheckoutRequest describes an asset checkout or install.
type CheckoutRequest struct {
	UserEmail          string `json:"user_email"`
	ExpectedReturnDate string `json:"expected_return_date,omitempty"`
	EventID            string `json:"event_id,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// CheckoutAsset hands an available asset to a user and records the move.
func (s *Service) CheckoutAsset(ctx context.Context, assetID string, req CheckoutRequest) (Asset, error) {
	if strings.TrimSpace(req.UserEmail) == "" {
		return Asset{}, fmt.Errorf("%w: user email is required", ErrValidation)
	}
	if err := ValidateDate("expected_return_date", req.ExpectedReturnDate); err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	asset, err := s.inv.Assets.Get(ctx, assetID)
	if err != nil {
		return Asset{}, err
	}
	if asset.Status != StatusAvailable {
		return Asset{}, fmt.Errorf("checkout %s (status %s): %w", asset.AssetID, asset.Status, ErrInvalidState)
	}

	return s.move(ctx, asset, ActionCheckout, req, map[string]any{
		"status":               StatusCheckedOut,
		"current_user":         req.UserEmail,
		"expected_return_date": req.ExpectedReturnDate,
	})
}

// InstallAsset marks an available asset as permanently installed.
func (s *Service) InstallAsset(ctx context.Context, assetID string, req CheckoutRequest) (Asset, error) {
	asset, err := s.inv.Assets.Get(ctx, assetID)
	if err != nil {
		return Asset{}, err
	}
	if asset.Status != StatusAvailable {
		return Asset{}, fmt.Errorf("install %s (status %s): %w", asset.AssetID, asset.Status, ErrInvalidState)
	}
	return s.move(ctx, asset, ActionInstall, req, map[string]any{
		"status":       StatusInstalled,
		"current_user": req.UserEmail,
	})
}

// CheckinAsset returns a checked out or installed asset to the pool.
func (s *Service) CheckinAsset(ctx context.Context, assetID, notes string) (Asset, error) {
	asset, err := s.inv.Assets.Get(ctx, assetID)
	if err != nil {
		return Asset{}, err
	}
	if asset.Status != StatusCheckedOut && asset.Status != StatusInstalled {
		return Asset{}, fmt.Errorf("checkin %s (status %s): %w", asset.AssetID, asset.Status, ErrInvalidState)
	}
	req := CheckoutRequest{UserEmail: asset.CurrentUser, Notes: notes}
	return s.move(ctx, asset, ActionCheckin, req, map[string]any{
		"status":               StatusAvailable,
		"current_user":         "",
		"expected_return_date": "",
	})
}

// move applies patch and records the history entry. If the history write
// fails the asset's previous status and holder are restored.
func (s *Service) move(ctx context.Context, asset Asset, action CheckoutAction, req CheckoutRequest, patch map[string]any) (Asset, error) {
	updated, err := s.inv.Assets.Update(ctx, asset.ID, patch)
	if err != nil {
		return Asset{}, err
	}
	_, err = s.inv.Checkouts.Create(ctx, CheckoutRecord{
		AssetID:            asset.ID,
		Action:             action,
		UserEmail:          req.UserEmail,
		CheckoutDate:       s.now().UTC(),
		ExpectedReturnDate: req.ExpectedReturnDate,
		EventID:            req.EventID,
		Notes:              req.Notes,
	})
	if err != nil {
		_, rerr := s.inv.Assets.Update(ctx, asset.ID, map[string]any{
			"status":               asset.Status,
			"current_user":         asset.CurrentUser,
			"expected_return_date": asset.ExpectedReturnDate,
		})
		if rerr != nil {
			slog.Error("restore asset after history failure",
				"asset_id", asset.AssetID,
				"action", action,
				"error", rerr,
			)
			return Asset{}, fmt.Errorf("record %s history: %w (restore failed: %v)", action, err, rerr)
		}
		return Asset{}, fmt.Errorf("record %s history: %w", action, err)
	}
	slog.Info("asset moved",
		"asset_id", asset.AssetID,
		"action", action,
		"user", req.UserEmail,
		"event_id", req.EventID,
	)
	return updated, nil
}

// History returns an asset's checkout records, newest first.
func (s *Service) History(ctx context.Context, assetID string) ([]CheckoutRecord, error) {
	recs, err := s.inv.Checkouts.Filter(ctx, map[string]any{"asset_id": assetID})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// ============================================================================
// Notes
// ============================================================================

// AddNote attaches a note to an existing asset.
func (s *Service) AddNote(ctx context.Context, assetID, content, author string) (AssetNote, error) {
	if strings.TrimSpace(content) == "" {
		return AssetNote{}, fmt.Errorf("%w: note content is required", ErrValidation)
	}
	if _, err := s.inv.Assets.Get(ctx, assetID); err != nil {
		return AssetNote{}, err
	}
	return s.inv.Notes.Create(ctx, AssetNote{
		AssetID:      assetID,
		Content:      content,
		UserFullName: author,
	})
}

// ListNotes returns the notes for an asset in creation order.
func (s *Service) ListNotes(ctx context.Context, assetID string) ([]AssetNote, error) {
	return s.inv.Notes.Filter(ctx, map[string]any{"asset_id": assetID})
}

// ============================================================================
// Events and composite assets
// ============================================================================

// CreateEvent validates and stores an event. Status defaults to upcoming.
func (s *Service) CreateEvent(ctx context.Context, e Event) (Event, error) {
	if strings.TrimSpace(e.Name) == "" {
		return Event{}, fmt.Errorf("%w: event name is required", ErrValidation)
	}
	if err := ValidateDate("start_date", e.StartDate); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := ValidateDate("end_date", e.EndDate); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if e.StartDate != "" && e.EndDate != "" && e.EndDate < e.StartDate {
		return Event{}, fmt.Errorf("%w: end_date %s is before start_date %s", ErrValidation, e.EndDate, e.StartDate)
	}
	if e.Status == "" {
		e.Status = EventUpcoming
	} else if !slices.Contains(EventStatuses, e.Status) {
		return Event{}, fmt.Errorf("%w: unknown event status %q", ErrValidation, e.Status)
	}
	if e.LocationID != "" {
		if _, err := s.inv.Locations.Get(ctx, e.LocationID); err != nil {
			return Event{}, fmt.Errorf("event location: %w", err)
		}
	}
	return s.inv.Events.Create(ctx, e)
}

// Components returns the assets whose parent is the composite asset id.
func (s *Service) Components(ctx context.Context, id string) ([]Asset, error) {
	if _, err := s.inv.Assets.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.inv.Assets.Filter(ctx, map[string]any{"parent_asset_id": id})
}
