// Package inventory holds the typed asset-inventory entities, the
// repositories that persist them and the operations built on top:
// checkout/checkin, category and location trees, event manifests.
package inventory

import (
	"fmt"
	"strings"
	"time"
)

// Entity kinds as stored in the backend.
const (
	KindAsset      = "Asset"
	KindCategory   = "Category"
	KindLocation   = "Location"
	KindEvent      = "Event"
	KindUser       = "User"
	KindRole       = "Role"
	KindCheckout   = "CheckoutHistory"
	KindNote       = "AssetNote"
	KindAttachment = "AssetAttachment"
)

// DateLayout is the calendar date format used for date-only fields.
const DateLayout = "2006-01-02"

// AssetStatus is the lifecycle state of an asset.
type AssetStatus string

const (
	StatusAvailable   AssetStatus = "available"
	StatusCheckedOut  AssetStatus = "checked_out"
	StatusInRepair    AssetStatus = "in_repair"
	StatusMaintenance AssetStatus = "maintenance"
	StatusRetired     AssetStatus = "retired"
	StatusInstalled   AssetStatus = "installed"
)

// AssetStatuses lists every valid status in display order.
var AssetStatuses = []AssetStatus{
	StatusAvailable,
	StatusCheckedOut,
	StatusInRepair,
	StatusMaintenance,
	StatusRetired,
	StatusInstalled,
}

// ParseAssetStatus matches s case-insensitively against the known statuses.
func ParseAssetStatus(s string) (AssetStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range AssetStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Asset is a trackable inventory item.
type Asset struct {
	ID                 string      `json:"id,omitempty"`
	Name               string      `json:"name"`
	AssetID            string      `json:"asset_id"`
	Make               *string     `json:"make"`
	Model              *string     `json:"model"`
	SerialNumber       *string     `json:"serial_number"`
	Status             AssetStatus `json:"status"`
	PurchaseDate       *string     `json:"purchase_date"`
	PurchasePrice      *float64    `json:"purchase_price"`
	Supplier           *string     `json:"supplier"`
	Description        *string     `json:"description"`
	CategoryID         string      `json:"category_id,omitempty"`
	LocationID         string      `json:"location_id,omitempty"`
	ParentAssetID      string      `json:"parent_asset_id,omitempty"`
	IsComposite        bool        `json:"is_composite,omitempty"`
	CurrentUser        string      `json:"current_user,omitempty"`
	ExpectedReturnDate string      `json:"expected_return_date,omitempty"`
	CreatedDate        time.Time   `json:"created_date,omitempty"`
}

// Category groups assets. Categories nest through ParentCategoryID.
type Category struct {
	ID               string    `json:"id,omitempty"`
	Name             string    `json:"name"`
	ParentCategoryID string    `json:"parent_category_id,omitempty"`
	Description      string    `json:"description,omitempty"`
	Color            string    `json:"color,omitempty"`
	CreatedDate      time.Time `json:"created_date,omitempty"`
}

// Location is a physical place. Locations nest through ParentLocationID.
type Location struct {
	ID               string    `json:"id,omitempty"`
	Name             string    `json:"name"`
	ParentLocationID string    `json:"parent_location_id,omitempty"`
	Description      string    `json:"description,omitempty"`
	Color            string    `json:"color,omitempty"`
	CreatedDate      time.Time `json:"created_date,omitempty"`
}

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// EventStatuses lists every valid event status.
var EventStatuses = []EventStatus{EventUpcoming, EventActive, EventCompleted, EventCancelled}

// Event is a scheduled occasion assets are checked out for.
type Event struct {
	ID           string      `json:"id,omitempty"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	StartDate    string      `json:"start_date,omitempty"`
	EndDate      string      `json:"end_date,omitempty"`
	LocationID   string      `json:"location_id,omitempty"`
	ManagerEmail string      `json:"manager_email,omitempty"`
	Status       EventStatus `json:"status,omitempty"`
	CreatedDate  time.Time   `json:"created_date,omitempty"`
}

// User is an account that can hold assets.
type User struct {
	ID          string    `json:"id,omitempty"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name,omitempty"`
	Role        string    `json:"role,omitempty"`
	RoleIDs     []string  `json:"role_ids,omitempty"`
	CreatedDate time.Time `json:"created_date,omitempty"`
}

// CheckoutAction is the kind of movement a history record describes.
type CheckoutAction string

const (
	ActionCheckout CheckoutAction = "checkout"
	ActionCheckin  CheckoutAction = "checkin"
	ActionInstall  CheckoutAction = "install"
)

// CheckoutRecord is one entry of an asset's checkout history.
type CheckoutRecord struct {
	ID                 string         `json:"id,omitempty"`
	AssetID            string         `json:"asset_id"`
	Action             CheckoutAction `json:"action"`
	UserEmail          string         `json:"user_email,omitempty"`
	CheckoutDate       time.Time      `json:"checkout_date"`
	ExpectedReturnDate string         `json:"expected_return_date,omitempty"`
	EventID            string         `json:"event_id,omitempty"`
	Notes              string         `json:"notes,omitempty"`
	CreatedDate        time.Time      `json:"created_date,omitempty"`
}

// AssetNote is a free-text comment on an asset.
type AssetNote struct {
	ID           string    `json:"id,omitempty"`
	AssetID      string    `json:"asset_id"`
	Content      string    `json:"content"`
	UserFullName string    `json:"user_full_name,omitempty"`
	CreatedDate  time.Time `json:"created_date,omitempty"`
}

// AssetAttachment links an uploaded file to an asset.
type AssetAttachment struct {
	ID                 string    `json:"id,omitempty"`
	AssetID            string    `json:"asset_id"`
	FileURL            string    `json:"file_url"`
	FileName           string    `json:"file_name,omitempty"`
	StorageKey         string    `json:"storage_key,omitempty"`
	UploadedByFullName string    `json:"uploaded_by_full_name,omitempty"`
	CreatedDate        time.Time `json:"created_date,omitempty"`
}

// ValidateDate reports whether s is a calendar date in DateLayout.
func ValidateDate(field, s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%s: invalid date %q, expected YYYY-MM-DD", field, s)
	}
	return nil
}
