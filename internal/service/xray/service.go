package xray

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/hms/internal/blob"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/internal/upload"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/metrics"
	"github.com/jwalitptl/hms/pkg/security"
	"github.com/jwalitptl/hms/pkg/validator"
)

const (
	kind          = "xray"
	statsKey      = "walkin"
	statsTTL      = 30 * time.Second
	keyPrefix     = "xray/"
	walkInPrefix  = "WALKIN-"
	walkInIDChars = 6
)

// ImagePath is the route prefix images are served under.
const ImagePath = "/xray/images/"

type Service struct {
	repo     repository.XrayRepository
	users    repository.UserRepository
	blobs    blob.Store
	validate validator.Validator
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	stats    *cache.Cache
	now      func() time.Time
}

func NewService(repo repository.XrayRepository, users repository.UserRepository, blobs blob.Store, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		blobs:    blobs,
		validate: validator.New(),
		metrics:  m,
		logger:   logger,
		stats:    cache.New(statsTTL, time.Minute),
		now:      time.Now,
	}
}

// Create stores the images and then the record. Registered-patient records
// take identity fields from the patient's account; walk-ins without an ID
// get a generated one.
func (s *Service) Create(ctx context.Context, draft *model.XrayDraft) (*model.XrayRecord, error) {
	if err := s.validate.Validate(draft); err != nil {
		return nil, err
	}

	if draft.WalkIn {
		if strings.TrimSpace(draft.PatientUniqueID) == "" {
			id, err := security.ReadableID(walkInPrefix, walkInIDChars)
			if err != nil {
				return nil, err
			}
			draft.PatientUniqueID = id
		}
	} else {
		patient, err := s.users.GetByUniqueID(ctx, draft.PatientUniqueID)
		if errors.IsNotFound(err) || (err == nil && patient.Role != model.RolePatient) {
			return nil, errors.NotFound("Patient", err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find patient: %w", err)
		}
		draft.ForPatient(patient)
	}

	types := make([]string, len(draft.Images))
	for i, img := range draft.Images {
		ct, err := upload.Check(img.Filename, img.Data)
		if err != nil {
			return nil, errors.BadRequest(err.Error(), err)
		}
		types[i] = ct
	}

	rec := draft.Record()
	rec.ID = uuid.NewString()

	for i, img := range draft.Images {
		stored, err := s.putImage(ctx, rec.ID, img, types[i])
		if err != nil {
			s.removeImages(ctx, rec.Images)
			return nil, err
		}
		rec.Images = append(rec.Images, stored)
	}

	if err := s.repo.Create(ctx, &rec); err != nil {
		s.removeImages(ctx, rec.Images)
		return nil, fmt.Errorf("failed to create x-ray record: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordsCreated.WithLabelValues(kind).Inc()
	}
	s.touched(&rec)
	s.logger.Info().
		Str("record_id", rec.ID).
		Str("patient", rec.PatientUniqueID).
		Bool("walk_in", rec.WalkIn).
		Int("images", len(rec.Images)).
		Msg("x-ray record created")
	return &rec, nil
}

func (s *Service) putImage(ctx context.Context, recordID string, img model.ImageFile, contentType string) (model.Image, error) {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	if ext == "" {
		if mt := mimetype.Lookup(contentType); mt != nil {
			ext = mt.Extension()
		}
	}
	key := keyPrefix + recordID + "/" + uuid.NewString() + ext

	info, err := s.blobs.Put(ctx, key, bytes.NewReader(img.Data), contentType)
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to store image %s: %w", img.Filename, err)
	}
	if s.metrics != nil {
		s.metrics.ImagesUploaded.Inc()
		s.metrics.UploadBytes.Observe(float64(info.Size))
	}

	return model.Image{
		URL:         ImagePath + key,
		Key:         key,
		Filename:    img.Filename,
		Note:        img.Note,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

func (s *Service) removeImages(ctx context.Context, images model.Images) {
	for _, img := range images {
		if _, err := s.blobs.Delete(ctx, img.Key); err != nil {
			s.logger.Warn().Err(err).Str("key", img.Key).Msg("failed to remove image")
		}
	}
}

// touched drops cached walk-in statistics after a walk-in changed.
func (s *Service) touched(rec *model.XrayRecord) {
	if rec.WalkIn {
		s.stats.Delete(statsKey)
	}
}

func (s *Service) load(ctx context.Context, id string, walkInOnly bool) (*model.XrayRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get x-ray record: %w", err)
	}
	if walkInOnly && !rec.WalkIn {
		return nil, errors.NotFound("walk-in record", nil)
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.XrayRecord, error) {
	return s.load(ctx, id, false)
}

func (s *Service) GetWalkIn(ctx context.Context, id string) (*model.XrayRecord, error) {
	return s.load(ctx, id, true)
}

func (s *Service) List(ctx context.Context, q model.ListQuery) (model.Page[model.XrayRecord], error) {
	q = q.Normalize()
	recs, total, err := s.repo.List(ctx, q)
	if err != nil {
		return model.Page[model.XrayRecord]{}, fmt.Errorf("failed to list x-ray records: %w", err)
	}

	page := model.Page[model.XrayRecord]{
		Records:    make([]model.XrayRecord, len(recs)),
		Pagination: model.NewPagination(q.Page, q.Limit, total),
	}
	for i, r := range recs {
		page.Records[i] = *r
	}
	return page, nil
}

// ListWalkIns lists and searches walk-in records only.
func (s *Service) ListWalkIns(ctx context.Context, q model.ListQuery) (model.Page[model.XrayRecord], error) {
	walkIn := true
	q.WalkIn = &walkIn
	return s.List(ctx, q)
}

func (s *Service) Update(ctx context.Context, id string, upd *model.XrayUpdate) (*model.XrayRecord, error) {
	return s.update(ctx, id, upd, false)
}

func (s *Service) UpdateWalkIn(ctx context.Context, id string, upd *model.XrayUpdate) (*model.XrayRecord, error) {
	return s.update(ctx, id, upd, true)
}

func (s *Service) update(ctx context.Context, id string, upd *model.XrayUpdate, walkInOnly bool) (*model.XrayRecord, error) {
	if err := s.validate.Validate(upd); err != nil {
		return nil, err
	}

	rec, err := s.load(ctx, id, walkInOnly)
	if err != nil {
		return nil, err
	}
	upd.Apply(rec)

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update x-ray record: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordsUpdated.WithLabelValues(kind).Inc()
	}
	s.touched(rec)
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.delete(ctx, id, false)
}

func (s *Service) DeleteWalkIn(ctx context.Context, id string) error {
	return s.delete(ctx, id, true)
}

func (s *Service) delete(ctx context.Context, id string, walkInOnly bool) error {
	rec, err := s.load(ctx, id, walkInOnly)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete x-ray record: %w", err)
	}
	s.removeImages(ctx, rec.Images)

	if s.metrics != nil {
		s.metrics.RecordsDeleted.WithLabelValues(kind).Inc()
	}
	s.touched(rec)
	return nil
}

// Statistics summarises walk-in activity. Results are cached briefly and
// dropped whenever a walk-in changes.
func (s *Service) Statistics(ctx context.Context) (model.WalkInStatistics, error) {
	if cached, ok := s.stats.Get(statsKey); ok {
		return cached.(model.WalkInStatistics), nil
	}

	recs, err := s.repo.ListWalkIns(ctx)
	if err != nil {
		return model.WalkInStatistics{}, fmt.Errorf("failed to list walk-ins: %w", err)
	}
	flat := make([]model.XrayRecord, len(recs))
	for i, r := range recs {
		flat[i] = *r
	}

	stats := model.NewWalkInStatistics(flat, s.now())
	s.stats.SetDefault(statsKey, stats)
	return stats, nil
}

// Image opens a stored image by key.
func (s *Service) Image(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	key = strings.TrimPrefix(key, "/")
	if !strings.HasPrefix(key, keyPrefix) {
		return blob.Info{}, nil, errors.NotFound("image", nil)
	}

	info, rc, err := s.blobs.Get(ctx, key)
	if stderrors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, errors.NotFound("image", err)
	}
	if err != nil {
		return blob.Info{}, nil, fmt.Errorf("failed to open image: %w", err)
	}
	return info, rc, nil
}
