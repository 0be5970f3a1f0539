package model

import "time"

type SharedList struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy *string   `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SharedListItem struct {
	ID          int64      `json:"id"`
	ListID      int64      `json:"list_id"`
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	Category    string     `json:"category"`
	Quantity    int        `json:"quantity"`
	Notes       string     `json:"notes"`
	Checked     bool       `json:"checked"`
	CheckedBy   *string    `json:"checked_by"`
	CheckedAt   *time.Time `json:"checked_at"`
	AddedBy     string     `json:"added_by"`
	UpdatedBy   *string    `json:"updated_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
