package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

const itemColumns = `
	id, user_id, title, description, category, type, size, condition, brand, color,
	material, location, tags, seasons, styles, points_value, is_available, is_approved,
	is_featured, status, views, expiry_date, created_at, updated_at`

const itemSearchVector = `to_tsvector('simple', title || ' ' || description || ' ' || brand || ' ' || array_to_string(tags, ' '))`

type ItemRepository struct {
	q querier
}

func (r *ItemRepository) Create(ctx context.Context, item models.Item) error {
	const query = `
		INSERT INTO items (
			id, user_id, title, description, category, type, size, condition, brand, color,
			material, location, tags, seasons, styles, points_value, is_available, is_approved,
			is_featured, status, views, expiry_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $23
		)
	`

	_, err := r.q.Exec(ctx, query,
		item.ID,
		item.UserID,
		item.Title,
		item.Description,
		item.Category,
		item.Type,
		item.Size,
		item.Condition,
		item.Brand,
		item.Color,
		item.Material,
		item.Location,
		nonNil(item.Tags),
		nonNil(item.Seasons),
		nonNil(item.Styles),
		item.PointsValue,
		item.IsAvailable,
		item.IsApproved,
		item.IsFeatured,
		item.Status,
		item.Views,
		item.ExpiryDate,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return r.replaceImages(ctx, item.ID, item.Images)
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (models.Item, error) {
	return r.getOne(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
}

func (r *ItemRepository) GetForUpdate(ctx context.Context, id string) (models.Item, error) {
	return r.getOne(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id)
}

// Update writes the item columns and replaces its images. It should run
// inside WithinTx so the image swap is atomic.
func (r *ItemRepository) Update(ctx context.Context, item models.Item) error {
	const query = `
		UPDATE items
		SET title = $2,
		    description = $3,
		    category = $4,
		    type = $5,
		    size = $6,
		    condition = $7,
		    brand = $8,
		    color = $9,
		    material = $10,
		    location = $11,
		    tags = $12,
		    seasons = $13,
		    styles = $14,
		    points_value = $15,
		    is_available = $16,
		    is_approved = $17,
		    is_featured = $18,
		    status = $19,
		    expiry_date = $20,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.q.Exec(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.Category,
		item.Type,
		item.Size,
		item.Condition,
		item.Brand,
		item.Color,
		item.Material,
		item.Location,
		nonNil(item.Tags),
		nonNil(item.Seasons),
		nonNil(item.Styles),
		item.PointsValue,
		item.IsAvailable,
		item.IsApproved,
		item.IsFeatured,
		item.Status,
		item.ExpiryDate,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrItemNotFound
	}
	return r.replaceImages(ctx, item.ID, item.Images)
}

func (r *ItemRepository) replaceImages(ctx context.Context, itemID string, images []models.ItemImage) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM item_images WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	const insert = `
		INSERT INTO item_images (id, item_id, object_key, url, is_primary, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for pos, img := range images {
		if _, err := r.q.Exec(ctx, insert, img.ID, itemID, img.ObjectKey, img.URL, img.IsPrimary, pos); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
	}
	return nil
}

func (r *ItemRepository) SetLiked(ctx context.Context, itemID, userID string, liked bool) error {
	var err error
	if liked {
		_, err = r.q.Exec(ctx,
			`INSERT INTO item_likes (item_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			itemID, userID)
	} else {
		_, err = r.q.Exec(ctx, `DELETE FROM item_likes WHERE item_id = $1 AND user_id = $2`, itemID, userID)
	}
	return err
}

func (r *ItemRepository) AddSwapRequest(ctx context.Context, itemID, swapID string) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO item_swap_requests (item_id, swap_request_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		itemID, swapID)
	return err
}

func (r *ItemRepository) RemoveSwapRequest(ctx context.Context, itemID, swapID string) error {
	_, err := r.q.Exec(ctx,
		`DELETE FROM item_swap_requests WHERE item_id = $1 AND swap_request_id = $2`,
		itemID, swapID)
	return err
}

func (r *ItemRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := r.q.QueryRow(ctx, `UPDATE items SET views = views + 1 WHERE id = $1 RETURNING views`, id).Scan(&views)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repository.ErrItemNotFound
	}
	return views, err
}

func (r *ItemRepository) List(ctx context.Context, filter repository.ItemFilter, page repository.Page) ([]models.Item, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OnlyActive {
		where = append(where,
			"status = 'active'", "is_available", "is_approved",
			"expiry_date >= "+arg(filter.Now))
	}
	if filter.Query != "" {
		where = append(where, itemSearchVector+" @@ plainto_tsquery('simple', "+arg(filter.Query)+")")
	}
	if filter.Category != "" {
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.Size != "" {
		where = append(where, "size = "+arg(filter.Size))
	}
	if filter.Condition != "" {
		where = append(where, "condition = "+arg(filter.Condition))
	}
	if filter.Brand != "" {
		where = append(where, "brand ILIKE "+arg(filter.Brand))
	}
	if filter.Color != "" {
		where = append(where, "color ILIKE "+arg(filter.Color))
	}
	if filter.MinPoints > 0 {
		where = append(where, "points_value >= "+arg(filter.MinPoints))
	}
	if filter.MaxPoints > 0 {
		where = append(where, "points_value <= "+arg(filter.MaxPoints))
	}
	if filter.OwnerID != "" {
		where = append(where, "user_id = "+arg(filter.OwnerID))
	}
	if filter.Featured {
		where = append(where, "is_featured")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + itemColumns + ` FROM items`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(itemOrderBy(filter.Sort))
	sb.WriteString(" LIMIT " + arg(page.Limit) + " OFFSET " + arg(page.Offset))

	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func itemOrderBy(sort string) string {
	switch sort {
	case repository.SortOldest:
		return "created_at ASC, id ASC"
	case repository.SortPointsAsc:
		return "points_value ASC, created_at DESC"
	case repository.SortPointsDesc:
		return "points_value DESC, created_at DESC"
	case repository.SortViews:
		return "views DESC, created_at DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

func (r *ItemRepository) getOne(ctx context.Context, query string, id string) (models.Item, error) {
	rows, err := r.q.Query(ctx, query, id)
	if err != nil {
		return models.Item{}, err
	}
	items, err := collectItems(rows)
	if err != nil {
		return models.Item{}, err
	}
	if len(items) == 0 {
		return models.Item{}, repository.ErrItemNotFound
	}
	if err := r.loadRelations(ctx, items); err != nil {
		return models.Item{}, err
	}
	return items[0], nil
}

// loadRelations fills images, likes and swap-request ids for a batch of items.
func (r *ItemRepository) loadRelations(ctx context.Context, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[string]int, len(items))
	for i, item := range items {
		ids[i] = item.ID
		index[item.ID] = i
	}

	rows, err := r.q.Query(ctx, `
		SELECT item_id, id, object_key, url, is_primary
		FROM item_images
		WHERE item_id = ANY($1)
		ORDER BY item_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	for rows.Next() {
		var itemID string
		var img models.ItemImage
		if err := rows.Scan(&itemID, &img.ID, &img.ObjectKey, &img.URL, &img.IsPrimary); err != nil {
			rows.Close()
			return err
		}
		i := index[itemID]
		items[i].Images = append(items[i].Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if err := r.loadIDs(ctx, items, index,
		`SELECT item_id, user_id FROM item_likes WHERE item_id = ANY($1) ORDER BY created_at`, ids,
		func(item *models.Item, id string) { item.Likes = append(item.Likes, id) }); err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	if err := r.loadIDs(ctx, items, index,
		`SELECT item_id, swap_request_id FROM item_swap_requests WHERE item_id = ANY($1) ORDER BY created_at`, ids,
		func(item *models.Item, id string) { item.SwapRequests = append(item.SwapRequests, id) }); err != nil {
		return fmt.Errorf("load swap requests: %w", err)
	}
	return nil
}

func (r *ItemRepository) loadIDs(ctx context.Context, items []models.Item, index map[string]int, query string, ids []string, add func(*models.Item, string)) error {
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID, id string
		if err := rows.Scan(&itemID, &id); err != nil {
			return err
		}
		add(&items[index[itemID]], id)
	}
	return rows.Err()
}

func collectItems(rows pgx.Rows) ([]models.Item, error) {
	defer rows.Close()
	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Title,
			&item.Description,
			&item.Category,
			&item.Type,
			&item.Size,
			&item.Condition,
			&item.Brand,
			&item.Color,
			&item.Material,
			&item.Location,
			&item.Tags,
			&item.Seasons,
			&item.Styles,
			&item.PointsValue,
			&item.IsAvailable,
			&item.IsApproved,
			&item.IsFeatured,
			&item.Status,
			&item.Views,
			&item.ExpiryDate,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
