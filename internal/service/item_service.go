package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"swapmarket/internal/cache"
	"swapmarket/internal/events"
	"swapmarket/internal/ids"
	"swapmarket/internal/media/sniffer"
	"swapmarket/internal/models"
	"swapmarket/internal/repository"
	"swapmarket/internal/storage"
)

// loadItem reads an item and applies the lifecycle invariants, writing
// the item back when they changed it. Inside a transaction the write
// commits with the rest of the unit of work.
func loadItem(ctx context.Context, items repository.ItemRepository, id string, forUpdate bool, now time.Time) (models.Item, error) {
	get := items.GetByID
	if forUpdate {
		get = items.GetForUpdate
	}
	item, err := get(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if item.Normalize(now) {
		if err := items.Update(ctx, item); err != nil {
			return models.Item{}, err
		}
	}
	return item, nil
}

type ItemService struct {
	store    repository.Store
	objects  storage.Objects
	events   events.Publisher
	featured cache.FeaturedCache
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewItemService(
	store repository.Store,
	objects storage.Objects,
	publisher events.Publisher,
	featured cache.FeaturedCache,
	ttl time.Duration,
	now func() time.Time,
	log zerolog.Logger,
) *ItemService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if featured == nil {
		featured = cache.NoFeatured{}
	}
	if ttl <= 0 {
		ttl = models.DefaultItemTTL
	}
	return &ItemService{
		store:    store,
		objects:  objects,
		events:   publisher,
		featured: featured,
		ttl:      ttl,
		now:      now,
		log:      log,
	}
}

type ItemInput struct {
	Title       string
	Description string
	Category    string
	Type        string
	Size        string
	Condition   string
	Brand       string
	Color       string
	Material    string
	Location    string
	Tags        []string
	Seasons     []string
	Styles      []string
	PointsValue int
}

func (in *ItemInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Color = strings.TrimSpace(in.Color)
	in.Material = strings.TrimSpace(in.Material)
	in.Location = strings.TrimSpace(in.Location)
	in.Tags = cleanTags(in.Tags)
}

func (in ItemInput) validate() error {
	switch {
	case in.Title == "" || len(in.Title) > 100:
		return validationf("title is required and must be at most 100 characters")
	case in.Description == "" || len(in.Description) > 1000:
		return validationf("description is required and must be at most 1000 characters")
	case !slices.Contains(models.ItemCategories, in.Category):
		return validationf("unknown category %q", in.Category)
	case !slices.Contains(models.ItemTypes, in.Type):
		return validationf("unknown type %q", in.Type)
	case !slices.Contains(models.ItemSizes, in.Size):
		return validationf("unknown size %q", in.Size)
	case !slices.Contains(models.ItemConditions, in.Condition):
		return validationf("unknown condition %q", in.Condition)
	case in.Color == "":
		return validationf("color is required")
	case in.PointsValue < models.MinPointsValue || in.PointsValue > models.MaxPointsValue:
		return validationf("pointsValue must be between %d and %d", models.MinPointsValue, models.MaxPointsValue)
	}
	for _, season := range in.Seasons {
		if !slices.Contains(models.ItemSeasons, season) {
			return validationf("unknown season %q", season)
		}
	}
	for _, style := range in.Styles {
		if !slices.Contains(models.ItemStyles, style) {
			return validationf("unknown style %q", style)
		}
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" && !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

// Create lists a new item. It starts pending until an admin approves it.
func (s *ItemService) Create(ctx context.Context, ownerID string, input ItemInput) (models.Item, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return models.Item{}, err
	}

	now := s.now()
	item := models.Item{
		ID:          ids.New(),
		UserID:      ownerID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Type:        input.Type,
		Size:        input.Size,
		Condition:   input.Condition,
		Brand:       input.Brand,
		Color:       input.Color,
		Material:    input.Material,
		Location:    input.Location,
		Tags:        input.Tags,
		Seasons:     input.Seasons,
		Styles:      input.Styles,
		PointsValue: input.PointsValue,
		IsAvailable: true,
		Status:      models.ItemStatusPending,
		ExpiryDate:  now.Add(s.ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		owner, err := tx.Users().GetForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := tx.Items().Create(ctx, item); err != nil {
			return err
		}
		owner.Stats.ItemsListed++
		return tx.Users().UpdateLedger(ctx, owner)
	})
	if err != nil {
		return models.Item{}, translate(err)
	}

	s.log.Info().Str("item_id", item.ID).Str("user_id", ownerID).Msg("item listed")
	return item, nil
}

// Update changes the descriptive fields and the points value. Status,
// approval and availability only move through their own operations.
func (s *ItemService) Update(ctx context.Context, itemID string, actor models.User, input ItemInput) (models.Item, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return models.Item{}, err
	}

	var item models.Item
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		item, err = loadItem(ctx, tx.Items(), itemID, true, s.now())
		if err != nil {
			return err
		}
		if item.UserID != actor.ID && !actor.IsAdmin() {
			return notAuthorizedf("only the owner can edit this item")
		}
		if item.Status == models.ItemStatusSwapped || item.Status == models.ItemStatusRemoved {
			return invalidStatef("item is %s", item.Status)
		}
		item.Title = input.Title
		item.Description = input.Description
		item.Category = input.Category
		item.Type = input.Type
		item.Size = input.Size
		item.Condition = input.Condition
		item.Brand = input.Brand
		item.Color = input.Color
		item.Material = input.Material
		item.Location = input.Location
		item.Tags = input.Tags
		item.Seasons = input.Seasons
		item.Styles = input.Styles
		item.PointsValue = input.PointsValue
		item.UpdatedAt = s.now()
		return tx.Items().Update(ctx, item)
	})
	if err != nil {
		return models.Item{}, translate(err)
	}
	s.invalidateFeatured(ctx, item)
	return item, nil
}

// Remove soft-deletes an item. Its photos are cleaned up by the worker.
func (s *ItemService) Remove(ctx context.Context, itemID string, actor models.User) error {
	var item models.Item
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		item, err = loadItem(ctx, tx.Items(), itemID, true, s.now())
		if err != nil {
			return err
		}
		if item.UserID != actor.ID && !actor.IsAdmin() {
			return notAuthorizedf("only the owner can remove this item")
		}
		if item.Status == models.ItemStatusSwapped || item.Status == models.ItemStatusRemoved {
			return invalidStatef("item is %s", item.Status)
		}
		item.MarkRemoved()
		item.UpdatedAt = s.now()
		return tx.Items().Update(ctx, item)
	})
	if err != nil {
		return translate(err)
	}

	s.log.Info().Str("item_id", item.ID).Str("actor_id", actor.ID).Msg("item removed")
	s.publishRemoved(ctx, item, actor.ID)
	s.invalidateFeatured(ctx, item)
	return nil
}

// Get returns a publicly visible item.
func (s *ItemService) Get(ctx context.Context, itemID string) (models.Item, error) {
	item, err := s.read(ctx, itemID)
	if err != nil {
		return models.Item{}, err
	}
	if !item.IsEligible() {
		return models.Item{}, fmt.Errorf("%w: item %s is not listed", ErrNotFound, itemID)
	}
	return item, nil
}

// read loads an item outside a transaction. If the lifecycle rules changed
// it, the change is persisted in a short transaction of its own.
func (s *ItemService) read(ctx context.Context, itemID string) (models.Item, error) {
	item, err := s.store.Items().GetByID(ctx, itemID)
	if err != nil {
		return models.Item{}, translate(err)
	}
	if !item.Normalize(s.now()) {
		return item, nil
	}
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		item, err = loadItem(ctx, tx.Items(), itemID, true, s.now())
		return err
	})
	return item, translate(err)
}

func (s *ItemService) View(ctx context.Context, itemID string) (int64, error) {
	views, err := s.store.Items().IncrementViews(ctx, itemID)
	return views, translate(err)
}

// ToggleLike flips the user's like and returns the updated item.
func (s *ItemService) ToggleLike(ctx context.Context, itemID, userID string) (models.Item, error) {
	var item models.Item
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		item, err = loadItem(ctx, tx.Items(), itemID, true, s.now())
		if err != nil {
			return err
		}
		liked := item.ToggleLike(userID)
		return tx.Items().SetLiked(ctx, itemID, userID, liked)
	})
	return item, translate(err)
}

type ImageUpload struct {
	Body         io.Reader
	Size         int64
	DeclaredType string
	Primary      bool
}

// AddImage stores a photo and attaches it to the item. A failed attach
// removes the stored object again.
func (s *ItemService) AddImage(ctx context.Context, itemID string, actor models.User, upload ImageUpload) (models.Item, error) {
	current, err := s.read(ctx, itemID)
	if err != nil {
		return models.Item{}, err
	}
	if current.UserID != actor.ID {
		return models.Item{}, notAuthorizedf("only the owner can add photos")
	}
	if len(current.Images) >= models.MaxItemImages {
		return models.Item{}, validationf("an item has at most %d photos", models.MaxItemImages)
	}

	result, head, err := sniffer.Detect(upload.Body)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return models.Item{}, validationf("unsupported image format")
		}
		return models.Item{}, fmt.Errorf("read upload: %w", err)
	}
	if !result.Accepts(upload.DeclaredType) {
		return models.Item{}, validationf("content type mismatch: declared %s, actual %s", upload.DeclaredType, result.MIME)
	}

	image := models.ItemImage{ID: ids.New(), IsPrimary: upload.Primary}
	image.ObjectKey = path.Join("items", itemID, image.ID+"."+result.Extension())
	body := io.MultiReader(bytes.NewReader(head), upload.Body)
	image.URL, err = s.objects.Put(ctx, image.ObjectKey, result.MIME, body, upload.Size)
	if err != nil {
		return models.Item{}, err
	}

	var item models.Item
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		item, err = loadItem(ctx, tx.Items(), itemID, true, s.now())
		if err != nil {
			return err
		}
		if len(item.Images) >= models.MaxItemImages {
			return validationf("an item has at most %d photos", models.MaxItemImages)
		}
		if image.IsPrimary {
			for i := range item.Images {
				item.Images[i].IsPrimary = false
			}
		}
		item.Images = append(item.Images, image)
		item.EnsurePrimaryImage()
		item.UpdatedAt = s.now()
		return tx.Items().Update(ctx, item)
	})
	if err != nil {
		if rmErr := s.objects.Remove(ctx, image.ObjectKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("object_key", image.ObjectKey).Msg("remove orphaned photo failed")
		}
		return models.Item{}, translate(err)
	}
	s.invalidateFeatured(ctx, item)
	return item, nil
}

// Owned lists every item of the owner, whatever its status.
func (s *ItemService) Owned(ctx context.Context, ownerID string, page repository.Page) ([]models.Item, error) {
	items, err := s.store.Items().List(ctx, repository.ItemFilter{OwnerID: ownerID}, page)
	if err != nil {
		return nil, translate(err)
	}
	now := s.now()
	for i := range items {
		items[i].Normalize(now)
	}
	return items, nil
}

// All lists items in any status, for admins.
func (s *ItemService) All(ctx context.Context, page repository.Page) ([]models.Item, error) {
	return s.Owned(ctx, "", page)
}

// Approve publishes a pending item.
func (s *ItemService) Approve(ctx context.Context, itemID string) (models.Item, error) {
	return s.moderate(ctx, itemID, func(item *models.Item) error {
		if item.Status != models.ItemStatusPending {
			return invalidStatef("only pending items can be approved, item is %s", item.Status)
		}
		item.IsApproved = true
		item.Status = models.ItemStatusActive
		return nil
	})
}

// Reject takes an item out of circulation for good.
func (s *ItemService) Reject(ctx context.Context, itemID string, actor models.User) (models.Item, error) {
	item, err := s.moderate(ctx, itemID, func(item *models.Item) error {
		if item.Status != models.ItemStatusPending && item.Status != models.ItemStatusActive {
			return invalidStatef("item is %s", item.Status)
		}
		item.IsApproved = false
		item.MarkRemoved()
		return nil
	})
	if err == nil {
		s.publishRemoved(ctx, item, actor.ID)
	}
	return item, err
}

func (s *ItemService) ToggleFeatured(ctx context.Context, itemID string) (models.Item, error) {
	return s.moderate(ctx, itemID, func(item *models.Item) error {
		item.IsFeatured = !item.IsFeatured
		return nil
	})
}

func (s *ItemService) moderate(ctx context.Context, itemID string, change func(item *models.Item) error) (models.Item, error) {
	var item models.Item
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		item, err = loadItem(ctx, tx.Items(), itemID, true, s.now())
		if err != nil {
			return err
		}
		if err := change(&item); err != nil {
			return err
		}
		item.UpdatedAt = s.now()
		return tx.Items().Update(ctx, item)
	})
	if err != nil {
		return models.Item{}, translate(err)
	}
	s.log.Info().
		Str("item_id", item.ID).
		Str("status", string(item.Status)).
		Bool("approved", item.IsApproved).
		Bool("featured", item.IsFeatured).
		Msg("item moderated")
	if err := s.featured.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("invalidate featured cache failed")
	}
	return item, nil
}

func (s *ItemService) publishRemoved(ctx context.Context, item models.Item, actorID string) {
	keys := make([]string, 0, len(item.Images))
	for _, img := range item.Images {
		keys = append(keys, img.ObjectKey)
	}
	err := s.events.Publish(ctx, events.Event{
		Type:       events.TypeItemRemoved,
		ItemID:     item.ID,
		ActorID:    actorID,
		ObjectKeys: keys,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("item_id", item.ID).Msg("publish item.removed failed")
	}
}

func (s *ItemService) invalidateFeatured(ctx context.Context, item models.Item) {
	if !item.IsFeatured {
		return
	}
	if err := s.featured.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("invalidate featured cache failed")
	}
}
