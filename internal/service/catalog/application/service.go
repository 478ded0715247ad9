// internal/service/catalog/application/service.go
package application

import (
	"context"
	"mime/multipart"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/logger"
	"tourhub/internal/service/catalog/domain"
)

const imageCategory = "tours"

// CatalogService 定义了线路目录的业务用例
type CatalogService struct {
	repo     domain.TourRepository
	capacity CapacityManager
	images   ImageStore
	tracer   trace.Tracer
}

// NewCatalogService 创建线路目录服务
func NewCatalogService(repo domain.TourRepository, capacity CapacityManager, images ImageStore, tracer trace.Tracer) *CatalogService {
	return &CatalogService{repo: repo, capacity: capacity, images: images, tracer: tracer}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ListTours 按条件列出线路，最新的在前
func (s *CatalogService) ListTours(ctx context.Context, f domain.Filter) ([]TourResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListTours")
	defer span.End()

	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, fail(span, apperr.Validation("minPrice must not exceed maxPrice"))
	}
	tours, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "list tours"))
	}
	out := make([]TourResponse, len(tours))
	for i := range tours {
		out[i] = *toTourResponse(&tours[i])
	}
	span.SetAttributes(attribute.Int("tours.count", len(out)))
	return out, nil
}

// GetTour 返回线路详情及其导游
func (s *CatalogService) GetTour(ctx context.Context, id int64) (*TourResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetTour")
	defer span.End()

	tour, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return toTourResponse(tour), nil
}

func (s *CatalogService) checkGuide(ctx context.Context, guideID *int64) error {
	if guideID == nil {
		return nil
	}
	ok, err := s.repo.IsGuide(ctx, *guideID)
	if err != nil {
		return errors.Wrap(err, "check guide")
	}
	if !ok {
		return apperr.Validation("user %d is not a guide", *guideID)
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// CreateTour 新建线路，可用名额初始化为总名额
func (s *CatalogService) CreateTour(ctx context.Context, in TourInput, image *multipart.FileHeader) (*TourResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateTour")
	defer span.End()

	tour := &domain.Tour{
		Name:        deref(in.Name),
		Description: deref(in.Description),
		Difficulty:  deref(in.Difficulty),
		Duration:    deref(in.Duration),
		Distance:    deref(in.Distance),
		Price:       deref(in.Price),
		Location:    deref(in.Location),
		GuideID:     in.GuideID,
		TotalSlots:  deref(in.TotalSlots),
	}
	tour.AvailableSlots = tour.TotalSlots
	if in.Price == nil {
		return nil, fail(span, apperr.Validation("price is required"))
	}
	if err := tour.Validate(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.checkGuide(ctx, tour.GuideID); err != nil {
		return nil, fail(span, err)
	}

	if image != nil {
		path, err := s.images.Save(imageCategory, image)
		if err != nil {
			return nil, fail(span, err)
		}
		tour.Image = path
	}
	if err := s.repo.Create(ctx, tour); err != nil {
		s.discardImage(ctx, tour.Image)
		return nil, fail(span, errors.Wrap(err, "create tour"))
	}

	logger.Ctx(ctx).Info().Int64("tour_id", tour.ID).Str("name", tour.Name).Msg("✅ tour created")
	return s.GetTour(ctx, tour.ID)
}

// UpdateTour 部分更新线路。总名额变更交给预订模块，替换图片时删除旧文件
func (s *CatalogService) UpdateTour(ctx context.Context, id int64, in TourInput, image *multipart.FileHeader) (*TourResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateTour")
	defer span.End()
	span.SetAttributes(attribute.Int64("tour.id", id))

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}

	patch := domain.TourPatch{
		Name:        in.Name,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		Duration:    in.Duration,
		Distance:    in.Distance,
		Price:       in.Price,
		Location:    in.Location,
		GuideID:     in.GuideID,
	}
	if patch.Empty() && in.TotalSlots == nil && image == nil {
		return nil, fail(span, apperr.Validation("no fields to update"))
	}
	if err := patch.Validate(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.checkGuide(ctx, patch.GuideID); err != nil {
		return nil, fail(span, err)
	}

	if in.TotalSlots != nil && *in.TotalSlots != existing.TotalSlots {
		if err := s.capacity.ResizeTour(ctx, id, *in.TotalSlots); err != nil {
			return nil, fail(span, err)
		}
	}

	if image != nil {
		path, err := s.images.Save(imageCategory, image)
		if err != nil {
			return nil, fail(span, err)
		}
		patch.Image = &path
	}
	if !patch.Empty() {
		if err := s.repo.Update(ctx, id, patch); err != nil {
			if patch.Image != nil {
				s.discardImage(ctx, *patch.Image)
			}
			return nil, fail(span, errors.Wrap(err, "update tour"))
		}
	}
	if patch.Image != nil {
		s.discardImage(ctx, existing.Image)
	}
	return s.GetTour(ctx, id)
}

// DeleteTour 删除线路及其图片
func (s *CatalogService) DeleteTour(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteTour")
	defer span.End()
	span.SetAttributes(attribute.Int64("tour.id", id))

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fail(span, err)
	}
	s.discardImage(ctx, existing.Image)
	logger.Ctx(ctx).Info().Int64("tour_id", id).Msg("tour deleted")
	return nil
}

// ListGuides 列出所有导游
func (s *CatalogService) ListGuides(ctx context.Context) ([]GuideResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListGuides")
	defer span.End()

	guides, err := s.repo.ListGuides(ctx)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "list guides"))
	}
	out := make([]GuideResponse, len(guides))
	for i := range guides {
		out[i] = *toGuideResponse(&guides[i])
	}
	return out, nil
}

func (s *CatalogService) discardImage(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.images.Remove(path); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("image", path).Msg("⚠️ failed to remove tour image")
	}
}
