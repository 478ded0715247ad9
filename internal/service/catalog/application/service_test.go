package application

import (
	"context"
	"mime/multipart"
	"net/http"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/service/catalog/domain"
)

type fakeRepo struct {
	tours  map[int64]*domain.Tour
	guides map[int64]domain.Guide
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tours: map[int64]*domain.Tour{}, guides: map[int64]domain.Guide{}, nextID: 1}
}

func (r *fakeRepo) List(_ context.Context, f domain.Filter) ([]domain.Tour, error) {
	var out []domain.Tour
	for _, t := range r.tours {
		if f.Difficulty != "" && t.Difficulty != f.Difficulty {
			continue
		}
		if f.MaxPrice != nil && t.Price > *f.MaxPrice {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id int64) (*domain.Tour, error) {
	t, ok := r.tours[id]
	if !ok {
		return nil, domain.TourNotFound(id)
	}
	cp := *t
	if t.GuideID != nil {
		if g, ok := r.guides[*t.GuideID]; ok {
			cp.Guide = &g
		}
	}
	return &cp, nil
}

func (r *fakeRepo) Create(_ context.Context, t *domain.Tour) error {
	t.ID = r.nextID
	r.nextID++
	cp := *t
	r.tours[t.ID] = &cp
	return nil
}

func (r *fakeRepo) Update(_ context.Context, id int64, p domain.TourPatch) error {
	t := r.tours[id]
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.Image != nil {
		t.Image = *p.Image
	}
	if p.GuideID != nil {
		t.GuideID = p.GuideID
	}
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	delete(r.tours, id)
	return nil
}

func (r *fakeRepo) ListGuides(context.Context) ([]domain.Guide, error) {
	var out []domain.Guide
	for _, g := range r.guides {
		out = append(out, g)
	}
	return out, nil
}

func (r *fakeRepo) IsGuide(_ context.Context, userID int64) (bool, error) {
	_, ok := r.guides[userID]
	return ok, nil
}

type fakeCapacity struct {
	repo  *fakeRepo
	calls []int
	err   error
}

func (c *fakeCapacity) ResizeTour(_ context.Context, tourID int64, total int) error {
	c.calls = append(c.calls, total)
	if c.err != nil {
		return c.err
	}
	t := c.repo.tours[tourID]
	t.AvailableSlots += total - t.TotalSlots
	t.TotalSlots = total
	return nil
}

type fakeImages struct {
	saved   []string
	removed []string
}

func (f *fakeImages) Save(category string, fh *multipart.FileHeader) (string, error) {
	p := "/images/" + category + "/" + fh.Filename
	f.saved = append(f.saved, p)
	return p, nil
}

func (f *fakeImages) Remove(p string) error {
	f.removed = append(f.removed, p)
	return nil
}

func ptr[T any](v T) *T { return &v }

func newTestService() (*CatalogService, *fakeRepo, *fakeCapacity, *fakeImages) {
	repo := newFakeRepo()
	repo.guides[7] = domain.Guide{ID: 7, Name: "Greta", Position: "Senior guide"}
	capacity := &fakeCapacity{repo: repo}
	images := &fakeImages{}
	svc := NewCatalogService(repo, capacity, images, noop.NewTracerProvider().Tracer("test"))
	return svc, repo, capacity, images
}

func TestCreateTour(t *testing.T) {
	svc, _, _, images := newTestService()
	ctx := context.Background()

	tour, err := svc.CreateTour(ctx, TourInput{
		Name:       ptr("Glacier Walk"),
		Price:      ptr(120.0),
		TotalSlots: ptr(12),
		GuideID:    ptr(int64(7)),
	}, &multipart.FileHeader{Filename: "glacier.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 12, tour.TotalSlots)
	assert.Equal(t, 12, tour.AvailableSlots)
	assert.Equal(t, "/images/tours/glacier.jpg", tour.Image)
	require.NotNil(t, tour.Guide)
	assert.Equal(t, "Greta", tour.Guide.Name)
	assert.Len(t, images.saved, 1)
}

func TestCreateTourValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	cases := map[string]TourInput{
		"missing name":   {Price: ptr(10.0), TotalSlots: ptr(3)},
		"missing price":  {Name: ptr("x"), TotalSlots: ptr(3)},
		"negative price": {Name: ptr("x"), Price: ptr(-1.0), TotalSlots: ptr(3)},
		"zero slots":     {Name: ptr("x"), Price: ptr(1.0), TotalSlots: ptr(0)},
		"not a guide":    {Name: ptr("x"), Price: ptr(1.0), TotalSlots: ptr(3), GuideID: ptr(int64(8))},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateTour(ctx, in, nil)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestUpdateTourResizesThroughCapacityManager(t *testing.T) {
	svc, _, capacity, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateTour(ctx, TourInput{Name: ptr("Ridge"), Price: ptr(50.0), TotalSlots: ptr(5)}, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateTour(ctx, created.ID, TourInput{TotalSlots: ptr(8), Name: ptr("Ridge Loop")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, capacity.calls)
	assert.Equal(t, 8, updated.TotalSlots)
	assert.Equal(t, 8, updated.AvailableSlots)
	assert.Equal(t, "Ridge Loop", updated.Name)

	// 容量未变化时不调用预订模块
	_, err = svc.UpdateTour(ctx, created.ID, TourInput{TotalSlots: ptr(8)}, nil)
	require.NoError(t, err)
	assert.Len(t, capacity.calls, 1)
}

func TestUpdateTourCapacityRejected(t *testing.T) {
	svc, _, capacity, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateTour(ctx, TourInput{Name: ptr("Ridge"), Price: ptr(50.0), TotalSlots: ptr(5)}, nil)
	require.NoError(t, err)

	capacity.err = apperr.Wrap(apperr.ErrInsufficientCapacity, nil, "only 2 slots can be released")
	_, err = svc.UpdateTour(ctx, created.ID, TourInput{TotalSlots: ptr(1), Name: ptr("Renamed")}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperr.Status(err))

	got, err := svc.GetTour(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ridge", got.Name)
}

func TestUpdateTourReplacesImage(t *testing.T) {
	svc, _, _, images := newTestService()
	ctx := context.Background()
	created, err := svc.CreateTour(ctx, TourInput{Name: ptr("Lake"), Price: ptr(20.0), TotalSlots: ptr(4)},
		&multipart.FileHeader{Filename: "old.png"})
	require.NoError(t, err)

	updated, err := svc.UpdateTour(ctx, created.ID, TourInput{}, &multipart.FileHeader{Filename: "new.png"})
	require.NoError(t, err)
	assert.Equal(t, "/images/tours/new.png", updated.Image)
	assert.Equal(t, []string{"/images/tours/old.png"}, images.removed)
}

func TestUpdateTourErrors(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpdateTour(ctx, 404, TourInput{Name: ptr("x")}, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	created, err := svc.CreateTour(ctx, TourInput{Name: ptr("Lake"), Price: ptr(20.0), TotalSlots: ptr(4)}, nil)
	require.NoError(t, err)
	_, err = svc.UpdateTour(ctx, created.ID, TourInput{}, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteTour(t *testing.T) {
	svc, repo, _, images := newTestService()
	ctx := context.Background()
	created, err := svc.CreateTour(ctx, TourInput{Name: ptr("Lake"), Price: ptr(20.0), TotalSlots: ptr(4)},
		&multipart.FileHeader{Filename: "lake.gif"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTour(ctx, created.ID))
	assert.Empty(t, repo.tours)
	assert.Equal(t, []string{"/images/tours/lake.gif"}, images.removed)

	assert.ErrorIs(t, svc.DeleteTour(ctx, created.ID), apperr.ErrNotFound)
}

func TestListTours(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	for _, name := range []string{"A", "B"} {
		_, err := svc.CreateTour(ctx, TourInput{Name: ptr(name), Price: ptr(10.0), TotalSlots: ptr(2)}, nil)
		require.NoError(t, err)
	}

	tours, err := svc.ListTours(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, tours, 2)
	assert.Equal(t, "B", tours[0].Name)

	_, err = svc.ListTours(ctx, domain.Filter{MinPrice: ptr(50.0), MaxPrice: ptr(10.0)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	guides, err := svc.ListGuides(ctx)
	require.NoError(t, err)
	assert.Len(t, guides, 1)
}
