package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schnillerman/care-contracts-api/internal/models"
	appErrors "github.com/schnillerman/care-contracts-api/pkg/errors"
)

type contractRepository interface {
	List(ctx context.Context, filter models.ContractFilter) ([]models.ContractPeriod, int, error)
	ListByClient(ctx context.Context, clientID string) ([]models.ContractPeriod, error)
	FindByID(ctx context.Context, id string) (*models.ContractPeriod, error)
	FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.ContractPeriod, error)
	Create(ctx context.Context, period *models.ContractPeriod) error
	Update(ctx context.Context, period *models.ContractPeriod) error
	Delete(ctx context.Context, id string) error
}

type categoryRepository interface {
	List(ctx context.Context) ([]models.CareCategory, error)
	FindByID(ctx context.Context, id string) (*models.CareCategory, error)
}

type contractCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type partitionLocker interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error)
}

type guardMetrics interface {
	ObserveConflictCheck(path string, conflict bool)
	ObserveLockWait(d time.Duration)
	ObserveDBQuery(label string, duration time.Duration)
	RecordCacheOperation(hit bool)
}

// CheckContractRequest is an advisory overlap check payload. ExcludeID skips
// the record being edited so a period is not compared against itself.
type CheckContractRequest struct {
	ClientID   string `json:"client_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required,uuid"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date"`
	ExcludeID  string `json:"exclude_id"`
}

// CreateContractRequest describes payload for creating a contract period.
type CreateContractRequest struct {
	ClientID   string `json:"client_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required,uuid"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date"`
}

// UpdateContractRequest updates an existing contract period.
type UpdateContractRequest struct {
	ClientID   string `json:"client_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required,uuid"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date"`
}

// ContractService coordinates overlap validation and guarded persistence of
// contract periods. Validate is advisory and lock-free; Create and Update are
// the authoritative paths and serialise per (client, category) partition.
type ContractService struct {
	repo       contractRepository
	categories categoryRepository
	cache      contractCache
	locks      partitionLocker
	metrics    guardMetrics

	lockTimeout time.Duration
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewContractService instantiates ContractService. cache and metrics may be nil.
func NewContractService(repo contractRepository, categories categoryRepository, cache contractCache, locks partitionLocker, metrics guardMetrics, lockTimeout, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ContractService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &ContractService{
		repo:        repo,
		categories:  categories,
		cache:       cache,
		locks:       locks,
		metrics:     metrics,
		lockTimeout: lockTimeout,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger,
	}
}

// Validate performs the advisory overlap check used for live form feedback.
// It holds no locks and its verdict may be stale by the time a commit runs;
// only Create and Update carry the no-overlap guarantee.
func (s *ContractService) Validate(ctx context.Context, req CheckContractRequest) (*models.ContractVerdict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contract payload")
	}
	candidate, err := parseInterval(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	query := models.OverlapQuery{
		ClientID:   req.ClientID,
		CategoryID: req.CategoryID,
		Candidate:  candidate,
		ExcludeID:  req.ExcludeID,
	}
	conflict, err := s.findConflict(ctx, query)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveConflictCheck("advisory", conflict != nil)
	}
	if conflict == nil {
		return &models.ContractVerdict{Overlap: false}, nil
	}
	detail := s.conflictDetail(ctx, *conflict)
	return &models.ContractVerdict{
		Overlap:  true,
		Message:  conflictMessage(detail),
		Conflict: &detail,
	}, nil
}

// Create inserts a new contract period through the partition guard.
func (s *ContractService) Create(ctx context.Context, req CreateContractRequest) (*models.ContractPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contract payload")
	}
	candidate, err := parseInterval(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, req.ClientID, req.CategoryID)
	if err != nil {
		return nil, err
	}
	defer release()

	query := models.OverlapQuery{ClientID: req.ClientID, CategoryID: req.CategoryID, Candidate: candidate}
	if err := s.ensureNoConflict(ctx, query); err != nil {
		return nil, err
	}

	period := models.ContractPeriod{
		ClientID:   req.ClientID,
		CategoryID: req.CategoryID,
		StartDate:  candidate.Start,
		EndDate:    candidate.End,
	}
	if err := s.repo.Create(ctx, &period); err != nil {
		return nil, s.storageError(ctx, err, query, "failed to create contract period")
	}

	s.invalidateClient(ctx, req.ClientID)
	return &period, nil
}

// Update modifies an existing contract period, re-running overlap validation
// with the period excluded from its own partition.
func (s *ContractService) Update(ctx context.Context, id string, req UpdateContractRequest) (*models.ContractPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contract payload")
	}
	candidate, err := parseInterval(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contract period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract period")
	}

	release, err := s.acquire(ctx, req.ClientID, req.CategoryID)
	if err != nil {
		return nil, err
	}
	defer release()

	query := models.OverlapQuery{
		ClientID:   req.ClientID,
		CategoryID: req.CategoryID,
		Candidate:  candidate,
		ExcludeID:  existing.ID,
	}
	if err := s.ensureNoConflict(ctx, query); err != nil {
		return nil, err
	}

	updated := models.ContractPeriod{
		ID:         existing.ID,
		ClientID:   req.ClientID,
		CategoryID: req.CategoryID,
		StartDate:  candidate.Start,
		EndDate:    candidate.End,
		CreatedAt:  existing.CreatedAt,
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, s.storageError(ctx, err, query, "failed to update contract period")
	}

	s.invalidateClient(ctx, existing.ClientID)
	if existing.ClientID != req.ClientID {
		s.invalidateClient(ctx, req.ClientID)
	}
	return &updated, nil
}

// Delete removes a contract period. Deletion cannot introduce overlaps and
// runs unguarded.
func (s *ContractService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "contract period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract period")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete contract period")
	}
	s.invalidateClient(ctx, existing.ClientID)
	return nil
}

// Get loads a single contract period.
func (s *ContractService) Get(ctx context.Context, id string) (*models.ContractPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contract period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract period")
	}
	return period, nil
}

// List returns contract periods with pagination metadata.
func (s *ContractService) List(ctx context.Context, filter models.ContractFilter) ([]models.ContractPeriod, *models.Pagination, error) {
	periods, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contract periods")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return periods, pagination, nil
}

// ListByClient returns a client's contract periods, served from cache when warm.
func (s *ContractService) ListByClient(ctx context.Context, clientID string) ([]models.ContractPeriod, error) {
	key := clientCacheKey(clientID)
	if s.cache != nil {
		var cached []models.ContractPeriod
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("contract cache read failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	periods, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list client contract periods")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, periods, s.cacheTTL); err != nil {
			s.logger.Warn("contract cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return periods, nil
}

// ListCategories returns the care categories available to the contract form.
func (s *ContractService) ListCategories(ctx context.Context) ([]models.CareCategory, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list care categories")
	}
	return categories, nil
}

func (s *ContractService) acquire(ctx context.Context, clientID, categoryID string) (func(), error) {
	start := time.Now()
	release, err := s.locks.Acquire(ctx, partitionKey(clientID, categoryID), s.lockTimeout)
	if s.metrics != nil {
		s.metrics.ObserveLockWait(time.Since(start))
	}
	if err != nil {
		s.logger.Warn("partition lock not acquired",
			zap.String("client_id", clientID),
			zap.String("category_id", categoryID),
			zap.Error(err))
		return nil, err
	}
	return release, nil
}

// ensureNoConflict re-checks the partition while the lock is held and turns a
// match into a conflict error carrying the existing period's identity.
func (s *ContractService) ensureNoConflict(ctx context.Context, query models.OverlapQuery) error {
	conflict, err := s.findConflict(ctx, query)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveConflictCheck("commit", conflict != nil)
	}
	if conflict == nil {
		return nil
	}
	detail := s.conflictDetail(ctx, *conflict)
	domainErr := &models.ContractConflictError{Message: conflictMessage(detail), Conflict: detail}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, domainErr.Message)
}

// findConflict runs the partition query and picks the deterministic first
// match: lowest start date, then lowest id. A storage failure propagates and
// is never collapsed into "no conflict".
func (s *ContractService) findConflict(ctx context.Context, query models.OverlapQuery) (*models.ContractPeriod, error) {
	start := time.Now()
	existing, err := s.repo.FindOverlapping(ctx, query)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("find_overlapping", time.Since(start))
	}
	if err != nil {
		s.logger.Error("contract overlap query failed",
			zap.String("client_id", query.ClientID),
			zap.String("category_id", query.CategoryID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check contract overlaps")
	}
	return firstConflict(query.Candidate, query.ExcludeID, existing), nil
}

// firstConflict is the pure overlap checker. The repository already scopes
// rows to the partition; the predicate is re-applied here so the decision
// does not depend on the storage engine's range arithmetic.
func firstConflict(candidate models.Interval, excludeID string, existing []models.ContractPeriod) *models.ContractPeriod {
	for i := range existing {
		if excludeID != "" && existing[i].ID == excludeID {
			continue
		}
		if candidate.Overlaps(existing[i].Interval()) {
			return &existing[i]
		}
	}
	return nil
}

func (s *ContractService) conflictDetail(ctx context.Context, period models.ContractPeriod) models.ContractConflict {
	detail := models.ContractConflict{
		PeriodID:   period.ID,
		ClientID:   period.ClientID,
		CategoryID: period.CategoryID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
	}
	category, err := s.categories.FindByID(ctx, period.CategoryID)
	if err != nil {
		s.logger.Warn("category lookup for conflict message failed",
			zap.String("category_id", period.CategoryID), zap.Error(err))
		return detail
	}
	detail.CategoryName = category.Name
	return detail
}

// storageError maps the exclusion constraint backstop to a conflict outcome;
// anything else stays an internal failure.
func (s *ContractService) storageError(ctx context.Context, err error, query models.OverlapQuery, message string) error {
	if errors.Is(err, models.ErrOverlapExcluded) {
		if s.metrics != nil {
			s.metrics.ObserveConflictCheck("constraint", true)
		}
		excluded := models.OverlapQuery{
			ClientID:   query.ClientID,
			CategoryID: query.CategoryID,
			Candidate:  query.Candidate,
			ExcludeID:  query.ExcludeID,
		}
		if conflict, findErr := s.findConflict(ctx, excluded); findErr == nil && conflict != nil {
			detail := s.conflictDetail(ctx, *conflict)
			domainErr := &models.ContractConflictError{Message: conflictMessage(detail), Conflict: detail}
			return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, domainErr.Message)
		}
		return appErrors.Clone(appErrors.ErrConflict, "contract period overlaps an existing period")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ContractService) invalidateClient(ctx context.Context, clientID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, clientCacheKey(clientID)+"*"); err != nil {
		s.logger.Warn("contract cache invalidation failed",
			zap.String("client_id", clientID), zap.Error(err))
	}
}

func conflictMessage(conflict models.ContractConflict) string {
	name := conflict.CategoryName
	if name == "" {
		name = "this care category"
	}
	interval := models.Interval{Start: conflict.StartDate, End: conflict.EndDate}
	return fmt.Sprintf("client already has a %s contract period (%s)", name, interval)
}

func parseInterval(startRaw, endRaw string) (models.Interval, error) {
	start, err := time.Parse(time.DateOnly, startRaw)
	if err != nil {
		return models.Interval{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start_date must be a YYYY-MM-DD date")
	}
	var end *time.Time
	if endRaw != "" {
		parsed, err := time.Parse(time.DateOnly, endRaw)
		if err != nil {
			return models.Interval{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "end_date must be a YYYY-MM-DD date")
		}
		end = &parsed
	}
	return models.NewInterval(start, end)
}

func partitionKey(clientID, categoryID string) string {
	return clientID + "|" + categoryID
}

func clientCacheKey(clientID string) string {
	return "contracts:client:" + clientID
}
