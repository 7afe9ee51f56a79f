package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/lofoph/internal/model"
)

// ItemQuery selects one page of items. Empty fields are not constrained.
type ItemQuery struct {
	Page     int
	Limit    int
	ItemType string
	Search   string
	Category string
	City     string
	Province string
	User     string
}

// MaxLimit caps the page size of ListItems.
const MaxLimit = 100

// NewImage is a photo stored with a new item.
type NewImage struct {
	MIME string
	Data []byte
}

const itemColumns = `i.id, i.name, i.description, i.item_type, i.category, i.location, i.city,
	i.province, i.date, i.reward, i.contact, i.contact_type, i.created_at, i.updated_at,
	u.id, u.name, u.email`

// CreateItem stores a report and its photos in one transaction. The item's
// Images field holds image IDs.
func CreateItem(ctx context.Context, db *sql.DB, r model.Report, images []NewImage) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := time.Now().UTC()
	var reward sql.NullFloat64
	if r.ItemType == model.ItemTypeLost && r.Reward > 0 {
		reward = sql.NullFloat64{Float64: r.Reward, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, name, description, item_type, category, location, city, province,
		                    date, reward, contact, contact_type, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Name, r.Description, r.ItemType, r.Category, r.Location, r.City, r.Province,
		r.Date.UTC(), reward, r.Contact, r.ContactType, r.User, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	for i, img := range images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO item_images (id, item_id, position, mime, data) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), id, i, img.MIME, img.Data,
		)
		if err != nil {
			return nil, fmt.Errorf("storing image %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}
	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items i JOIN users u ON u.id = i.user_id WHERE i.id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	items := []model.Item{*item}
	if err := attachImages(ctx, db, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListItems returns one page of items, newest first.
func ListItems(ctx context.Context, db *sql.DB, q ItemQuery) ([]model.Item, error) {
	var where []string
	var args []any
	add := func(cond string, vals ...any) {
		where = append(where, cond)
		args = append(args, vals...)
	}

	if q.ItemType != "" {
		add(`i.item_type = ?`, q.ItemType)
	}
	if q.Search != "" {
		like := "%" + escapeLike(q.Search) + "%"
		add(`(i.name LIKE ? ESCAPE '\' OR i.description LIKE ? ESCAPE '\')`, like, like)
	}
	if q.Category != "" {
		add(`i.category = ?`, q.Category)
	}
	if q.City != "" {
		add(`i.city = ?`, q.City)
	}
	if q.Province != "" {
		add(`i.province = ?`, q.Province)
	}
	if q.User != "" {
		add(`i.user_id = ?`, q.User)
	}

	limit := q.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	page := max(q.Page, 1)

	query := `SELECT ` + itemColumns + ` FROM items i JOIN users u ON u.id = i.user_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY i.created_at DESC, i.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	rows.Close()

	if err := attachImages(ctx, db, items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetImage returns an image's data and MIME type, or nil data if it does
// not exist.
func GetImage(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM item_images WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting image: %w", err)
	}
	return data, mime, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*model.Item, error) {
	var item model.Item
	var category string
	var reward sql.NullFloat64
	err := s.Scan(&item.ID, &item.Name, &item.Description, &item.ItemType, &category, &item.Location,
		&item.City, &item.Province, &item.Date, &reward, &item.Contact, &item.ContactType,
		&item.CreatedAt, &item.UpdatedAt, &item.User.ID, &item.User.Name, &item.User.Email)
	if err != nil {
		return nil, err
	}
	item.Category = []string{category}
	if reward.Valid {
		v := reward.Float64
		item.Reward = &v
	}
	item.Images = []string{}
	return &item, nil
}

// attachImages fills in the image IDs of items in display order.
func attachImages(ctx context.Context, db *sql.DB, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}

	index := make(map[string]int, len(items))
	placeholders := make([]string, len(items))
	args := make([]any, len(items))
	for i, it := range items {
		index[it.ID] = i
		placeholders[i] = "?"
		args[i] = it.ID
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id FROM item_images WHERE item_id IN (`+strings.Join(placeholders, ",")+`)
		 ORDER BY item_id, position`, args...,
	)
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, itemID string
		if err := rows.Scan(&id, &itemID); err != nil {
			return fmt.Errorf("scanning image: %w", err)
		}
		i := index[itemID]
		items[i].Images = append(items[i].Images, id)
	}
	return rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
