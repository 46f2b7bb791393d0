package product

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInvalid  = errors.New("invalid category")
	ErrCategoryTaken    = errors.New("category slug already used")
	// ErrCategoryInUse is returned when products or child categories still point at it.
	ErrCategoryInUse = errors.New("category is in use")
)

// maxCategoryDepth bounds the parent walk used for cycle detection.
const maxCategoryDepth = 32

var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type CategoryRepository interface {
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, storeID, id string) (*Category, error)
	ListCategories(ctx context.Context, storeID string) ([]Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, storeID, id string) (bool, error)
}

const categoryColumns = `id, store_id, name, slug, parent_id, created_at, updated_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.Slug, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func categoryWriteErr(err error) error {
	switch pgCode(err) {
	case "23505":
		return ErrCategoryTaken
	case "23503":
		return fmt.Errorf("%w: unknown parent", ErrCategoryInvalid)
	}
	return err
}

func (r *PGRepo) CreateCategory(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO categories (id, store_id, name, slug, parent_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
		RETURNING created_at, updated_at
	`, c.ID, c.StoreID, c.Name, c.Slug, c.ParentID).Scan(&c.CreatedAt, &c.UpdatedAt)
	return categoryWriteErr(err)
}

func (r *PGRepo) GetCategory(ctx context.Context, storeID, id string) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c, err := scanCategory(r.db.QueryRow(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE id=$1 AND store_id=$2
	`, id, storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

func (r *PGRepo) ListCategories(ctx context.Context, storeID string) ([]Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE store_id=$1 ORDER BY name
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateCategory(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		UPDATE categories SET name=$3, slug=$4, parent_id=$5, updated_at=NOW()
		WHERE id=$1 AND store_id=$2
		RETURNING updated_at
	`, c.ID, c.StoreID, c.Name, c.Slug, c.ParentID).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCategoryNotFound
	}
	return categoryWriteErr(err)
}

func (r *PGRepo) DeleteCategory(ctx context.Context, storeID, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id=$1 AND store_id=$2`, id, storeID)
	if pgCode(err) == "23503" {
		return false, ErrCategoryInUse
	}
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// CategoryService manages the category tree of a store.
type CategoryService struct {
	repo CategoryRepository
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) Create(ctx context.Context, st *tenant.Store, in CategoryRequest) (*Category, error) {
	if st == nil || st.Platform {
		return nil, tenant.ErrStoreNotFound
	}
	c := &Category{ID: uuid.NewString(), StoreID: st.ID}
	if err := s.apply(ctx, c, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces name, slug and parent of a category.
func (s *CategoryService) Update(ctx context.Context, st *tenant.Store, id string, in CategoryRequest) (*Category, error) {
	c, err := s.Get(ctx, st, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, c, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, st *tenant.Store, id string) (*Category, error) {
	if st == nil || st.Platform {
		return nil, tenant.ErrStoreNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrCategoryNotFound
	}
	return s.repo.GetCategory(ctx, st.ID, id)
}

func (s *CategoryService) List(ctx context.Context, st *tenant.Store) ([]Category, error) {
	if st == nil || st.Platform {
		return nil, tenant.ErrStoreNotFound
	}
	return s.repo.ListCategories(ctx, st.ID)
}

func (s *CategoryService) Delete(ctx context.Context, st *tenant.Store, id string) error {
	if _, err := s.Get(ctx, st, id); err != nil {
		return err
	}
	ok, err := s.repo.DeleteCategory(ctx, st.ID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *CategoryService) apply(ctx context.Context, c *Category, in CategoryRequest) error {
	c.Name = strings.TrimSpace(in.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrCategoryInvalid)
	}
	c.Slug = strings.TrimSpace(in.Slug)
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if !slugRe.MatchString(c.Slug) {
		return fmt.Errorf("%w: slug %q must be lowercase letters, digits and dashes", ErrCategoryInvalid, c.Slug)
	}

	c.ParentID = nil
	parent := strings.TrimSpace(in.ParentID)
	if parent == "" {
		return nil
	}
	if _, err := uuid.Parse(parent); err != nil {
		return fmt.Errorf("%w: parent_id must be a uuid", ErrCategoryInvalid)
	}
	// Walk up from the new parent; reaching c means the tree would loop.
	for id, depth := parent, 0; id != ""; depth++ {
		if id == c.ID || depth >= maxCategoryDepth {
			return fmt.Errorf("%w: parent would create a cycle", ErrCategoryInvalid)
		}
		p, err := s.repo.GetCategory(ctx, c.StoreID, id)
		if errors.Is(err, ErrCategoryNotFound) {
			return fmt.Errorf("%w: unknown parent", ErrCategoryInvalid)
		}
		if err != nil {
			return err
		}
		id = ""
		if p.ParentID != nil {
			id = *p.ParentID
		}
	}
	c.ParentID = &parent
	return nil
}

// Slugify turns a name into a URL slug: "Mech Keyboards!" -> "mech-keyboards".
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
