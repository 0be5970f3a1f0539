package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/shopassist/internal/access"
	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/grocery"
	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/notify"
	"github.com/dukerupert/shopassist/internal/store"
)

const maxNotesLength = 500

// ItemInput describes a product added to a shared list. A nil Quantity means 1.
type ItemInput struct {
	ProductID   string
	ProductName string
	Category    string
	Quantity    *int
	Notes       string
}

// ItemUpdate changes the given fields of an item and leaves nil ones alone.
type ItemUpdate struct {
	ProductName *string
	Category    *string
	Quantity    *int
	Notes       *string
}

func (s *Service) CreateSharedList(ctx context.Context, c Caller, familyID int64, name string) (*model.SharedList, error) {
	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}
	family, _, err := s.authorize(ctx, c, familyID, access.WriteLists)
	if err != nil {
		return nil, err
	}
	list, err := s.lists.Create(ctx, familyID, name, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}

	s.notify(ctx, notify.Event{
		Type:     model.NotifListCreated,
		FamilyID: familyID,
		ActorID:  c.UserID,
		Message:  fmt.Sprintf("%s created the list %q in %s", displayName(c), list.Name, family.Name),
	})
	return list, nil
}

func (s *Service) ListSharedLists(ctx context.Context, c Caller, familyID int64) ([]model.SharedList, error) {
	if _, _, err := s.authorize(ctx, c, familyID, access.ViewFamily); err != nil {
		return nil, err
	}
	lists, err := s.lists.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, storeErr(err)
	}
	return lists, nil
}

func (s *Service) GetSharedList(ctx context.Context, c Caller, listID int64) (*model.SharedList, error) {
	list, _, err := s.authorizeList(ctx, c, listID, access.ViewFamily)
	return list, err
}

// UpdateSharedList renames a list.
func (s *Service) UpdateSharedList(ctx context.Context, c Caller, listID int64, name string) (*model.SharedList, error) {
	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}
	list, _, err := s.authorizeList(ctx, c, listID, access.WriteLists)
	if err != nil {
		return nil, err
	}
	updated, err := s.lists.Rename(ctx, listID, name, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	if updated == nil {
		return nil, apperr.NotFound("list")
	}

	s.notify(ctx, notify.Event{
		Type:     model.NotifListUpdated,
		FamilyID: list.FamilyID,
		ActorID:  c.UserID,
		Message:  fmt.Sprintf("%s renamed the list %q to %q", displayName(c), list.Name, updated.Name),
	})
	return updated, nil
}

// DeleteSharedList removes a list and its items. Writers may only delete
// lists they created; admins may delete any list.
func (s *Service) DeleteSharedList(ctx context.Context, c Caller, listID int64) error {
	list, member, err := s.authorizeList(ctx, c, listID, access.WriteLists)
	if err != nil {
		return err
	}
	if member.Role != model.RoleAdmin && list.CreatedBy != c.UserID {
		return apperr.Forbidden("only an admin or the list creator may delete this list")
	}
	if err := s.lists.Delete(ctx, listID); err != nil {
		return storeErr(err)
	}

	s.notify(ctx, notify.Event{
		Type:     model.NotifListDeleted,
		FamilyID: list.FamilyID,
		ActorID:  c.UserID,
		Message:  fmt.Sprintf("%s deleted the list %q", displayName(c), list.Name),
	})
	return nil
}

// authorizeList loads a list and checks action against the caller's role in
// the list's family.
func (s *Service) authorizeList(ctx context.Context, c Caller, listID int64, action access.Action) (*model.SharedList, *model.FamilyMember, error) {
	if err := requireCaller(c); err != nil {
		return nil, nil, err
	}
	list, err := s.lists.GetByID(ctx, listID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if list == nil {
		return nil, nil, apperr.NotFound("list")
	}
	member, err := s.families.GetMember(ctx, list.FamilyID, c.UserID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if err := access.Check(member, action); err != nil {
		return nil, nil, err
	}
	return list, member, nil
}

// --- Item methods ---

func (s *Service) ListItems(ctx context.Context, c Caller, listID int64) ([]model.SharedListItem, error) {
	if _, _, err := s.authorizeList(ctx, c, listID, access.ViewFamily); err != nil {
		return nil, err
	}
	items, err := s.lists.ListItems(ctx, listID)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// AddItem puts a catalog product on the list. The category is derived from
// the product name when not given.
func (s *Service) AddItem(ctx context.Context, c Caller, listID int64, in ItemInput) (*model.SharedListItem, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return nil, apperr.Validation("product_id is required")
	}
	productName, err := validateName("product_name", in.ProductName)
	if err != nil {
		return nil, err
	}
	quantity := 1
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	notes, err := validateNotes(in.Notes)
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = grocery.Categorize(productName)
	}

	list, _, err := s.authorizeList(ctx, c, listID, access.WriteItems)
	if err != nil {
		return nil, err
	}
	item, err := s.lists.AddItem(ctx, listID, store.NewListItem{
		ProductID:   productID,
		ProductName: productName,
		Category:    category,
		Quantity:    quantity,
		Notes:       notes,
	}, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}

	s.notify(ctx, notify.Event{
		Type:     model.NotifItemAdded,
		FamilyID: list.FamilyID,
		ActorID:  c.UserID,
		Message:  fmt.Sprintf("%s added %s to %q", displayName(c), item.ProductName, list.Name),
	})
	return item, nil
}

// UpdateItem applies a partial update. Concurrent edits are last write wins.
func (s *Service) UpdateItem(ctx context.Context, c Caller, listID, itemID int64, upd ItemUpdate) (*model.SharedListItem, error) {
	if _, _, err := s.authorizeList(ctx, c, listID, access.WriteItems); err != nil {
		return nil, err
	}
	item, err := s.lists.GetItem(ctx, listID, itemID)
	if err != nil {
		return nil, storeErr(err)
	}
	if item == nil {
		return nil, apperr.NotFound("item")
	}

	in := store.NewListItem{
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Category:    item.Category,
		Quantity:    item.Quantity,
		Notes:       item.Notes,
	}
	if upd.ProductName != nil {
		if in.ProductName, err = validateName("product_name", *upd.ProductName); err != nil {
			return nil, err
		}
	}
	if upd.Category != nil {
		in.Category = strings.TrimSpace(*upd.Category)
		if in.Category == "" {
			in.Category = grocery.Categorize(in.ProductName)
		}
	}
	if upd.Quantity != nil {
		if err := validateQuantity(*upd.Quantity); err != nil {
			return nil, err
		}
		in.Quantity = *upd.Quantity
	}
	if upd.Notes != nil {
		if in.Notes, err = validateNotes(*upd.Notes); err != nil {
			return nil, err
		}
	}

	updated, err := s.lists.UpdateItem(ctx, listID, itemID, in, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	if updated == nil {
		return nil, apperr.NotFound("item")
	}
	return updated, nil
}

func (s *Service) RemoveItem(ctx context.Context, c Caller, listID, itemID int64) error {
	list, _, err := s.authorizeList(ctx, c, listID, access.WriteItems)
	if err != nil {
		return err
	}
	item, err := s.lists.GetItem(ctx, listID, itemID)
	if err != nil {
		return storeErr(err)
	}
	if item == nil {
		return apperr.NotFound("item")
	}
	if err := s.lists.DeleteItem(ctx, listID, itemID); err != nil {
		return storeErr(err)
	}

	s.notify(ctx, notify.Event{
		Type:     model.NotifItemRemoved,
		FamilyID: list.FamilyID,
		ActorID:  c.UserID,
		Message:  fmt.Sprintf("%s removed %s from %q", displayName(c), item.ProductName, list.Name),
	})
	return nil
}

// ToggleItemChecked flips the checked state of an item.
func (s *Service) ToggleItemChecked(ctx context.Context, c Caller, listID, itemID int64) (*model.SharedListItem, error) {
	if _, _, err := s.authorizeList(ctx, c, listID, access.WriteItems); err != nil {
		return nil, err
	}
	item, err := s.lists.GetItem(ctx, listID, itemID)
	if err != nil {
		return nil, storeErr(err)
	}
	if item == nil {
		return nil, apperr.NotFound("item")
	}
	updated, err := s.lists.SetChecked(ctx, listID, itemID, !item.Checked, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	if updated == nil {
		return nil, apperr.NotFound("item")
	}
	return updated, nil
}

// ClearCheckedItems deletes the checked items of a list and returns how many
// were removed.
func (s *Service) ClearCheckedItems(ctx context.Context, c Caller, listID int64) (int64, error) {
	if _, _, err := s.authorizeList(ctx, c, listID, access.WriteItems); err != nil {
		return 0, err
	}
	n, err := s.lists.ClearChecked(ctx, listID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func validateQuantity(q int) error {
	if q < 1 {
		return apperr.Validation("quantity must be at least 1")
	}
	return nil
}

func validateNotes(notes string) (string, error) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return "", apperr.New(apperr.KindValidation, "notes must be at most %d characters", maxNotesLength)
	}
	return notes, nil
}
