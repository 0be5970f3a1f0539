package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/model"
)

type SharedListStore struct {
	db database.Querier
}

func NewSharedListStore(db database.Querier) *SharedListStore {
	return &SharedListStore{db: db}
}

// --- List methods ---

func scanSharedList(scanner interface{ Scan(...any) error }) (*model.SharedList, error) {
	var l model.SharedList
	err := scanner.Scan(&l.ID, &l.FamilyID, &l.Name, &l.CreatedBy, &l.UpdatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const sharedListCols = `id, family_id, name, created_by, updated_by, created_at, updated_at`

func (s *SharedListStore) Create(ctx context.Context, familyID int64, name, createdBy string) (*model.SharedList, error) {
	ts := now()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO shared_lists (family_id, name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		familyID, name, createdBy, ts, ts,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert shared list: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SharedListStore) GetByID(ctx context.Context, id int64) (*model.SharedList, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sharedListCols+` FROM shared_lists WHERE id = ?`, id)
	l, err := scanSharedList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shared list: %w", err)
	}
	return l, nil
}

func (s *SharedListStore) ListByFamily(ctx context.Context, familyID int64) ([]model.SharedList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sharedListCols+` FROM shared_lists WHERE family_id = ? ORDER BY created_at ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shared lists: %w", err)
	}
	defer rows.Close()

	lists := []model.SharedList{}
	for rows.Next() {
		l, err := scanSharedList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shared list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

func (s *SharedListStore) Rename(ctx context.Context, id int64, name, updatedBy string) (*model.SharedList, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE shared_lists SET name = ?, updated_by = ?, updated_at = ? WHERE id = ?`,
		name, updatedBy, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("rename shared list: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SharedListStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shared_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shared list: %w", err)
	}
	return nil
}

// --- Item methods ---

func scanListItem(scanner interface{ Scan(...any) error }) (*model.SharedListItem, error) {
	var item model.SharedListItem
	err := scanner.Scan(
		&item.ID, &item.ListID, &item.ProductID, &item.ProductName, &item.Category,
		&item.Quantity, &item.Notes, &item.Checked, &item.CheckedBy, &item.CheckedAt,
		&item.AddedBy, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

const listItemCols = `id, list_id, product_id, product_name, category, quantity, notes, checked, checked_by, checked_at, added_by, updated_by, created_at, updated_at`

// NewListItem holds the caller-supplied fields of an item.
type NewListItem struct {
	ProductID   string
	ProductName string
	Category    string
	Quantity    int
	Notes       string
}

func (s *SharedListStore) AddItem(ctx context.Context, listID int64, in NewListItem, addedBy string) (*model.SharedListItem, error) {
	ts := now()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO shared_list_items (list_id, product_id, product_name, category, quantity, notes, checked, added_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		listID, in.ProductID, in.ProductName, in.Category, in.Quantity, in.Notes, false, addedBy, ts, ts,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.GetItem(ctx, listID, id)
}

// GetItem returns the item only if it belongs to listID.
func (s *SharedListStore) GetItem(ctx context.Context, listID, itemID int64) (*model.SharedListItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listItemCols+` FROM shared_list_items WHERE id = ? AND list_id = ?`,
		itemID, listID,
	)
	item, err := scanListItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *SharedListStore) ListItems(ctx context.Context, listID int64) ([]model.SharedListItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listItemCols+` FROM shared_list_items WHERE list_id = ? ORDER BY checked ASC, category ASC, created_at ASC, id ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.SharedListItem{}
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *SharedListStore) UpdateItem(ctx context.Context, listID, itemID int64, in NewListItem, updatedBy string) (*model.SharedListItem, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE shared_list_items
		 SET product_id = ?, product_name = ?, category = ?, quantity = ?, notes = ?, updated_by = ?, updated_at = ?
		 WHERE id = ? AND list_id = ?`,
		in.ProductID, in.ProductName, in.Category, in.Quantity, in.Notes, updatedBy, now(), itemID, listID,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.GetItem(ctx, listID, itemID)
}

func (s *SharedListStore) DeleteItem(ctx context.Context, listID, itemID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shared_list_items WHERE id = ? AND list_id = ?`, itemID, listID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// SetChecked marks an item checked by checkedBy, or clears the check.
func (s *SharedListStore) SetChecked(ctx context.Context, listID, itemID int64, checked bool, checkedBy string) (*model.SharedListItem, error) {
	ts := now()
	var err error
	if checked {
		_, err = s.db.ExecContext(ctx,
			`UPDATE shared_list_items SET checked = ?, checked_by = ?, checked_at = ?, updated_by = ?, updated_at = ?
			 WHERE id = ? AND list_id = ?`,
			true, checkedBy, ts, checkedBy, ts, itemID, listID,
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE shared_list_items SET checked = ?, checked_by = NULL, checked_at = NULL, updated_by = ?, updated_at = ?
			 WHERE id = ? AND list_id = ?`,
			false, checkedBy, ts, itemID, listID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("set checked: %w", err)
	}
	return s.GetItem(ctx, listID, itemID)
}

// ClearChecked deletes every checked item of the list and returns how many
// were removed.
func (s *SharedListStore) ClearChecked(ctx context.Context, listID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM shared_list_items WHERE list_id = ? AND checked = ?`,
		listID, true,
	)
	if err != nil {
		return 0, fmt.Errorf("clear checked: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
