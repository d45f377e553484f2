package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	couponCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	couponCodeLength   = 8

	defaultFreePeriodMonths = 3
	defaultMaxUses          = 100
	generateCodeAttempts    = 3
)

// CreateCouponInput describes a new coupon. Zero values take defaults and
// an empty code is generated.
type CreateCouponInput struct {
	Code             string                `json:"code" validate:"omitempty,alphanum,min=6,max=12"`
	Description      string                `json:"description" validate:"max=255"`
	FreePeriodMonths int                   `json:"free_period_months" validate:"omitempty,min=1,max=36"`
	MaxUses          int                   `json:"max_uses" validate:"omitempty,min=1"`
	ExpirationDate   *time.Time            `json:"expiration_date,omitempty"`
	PlanRestriction  model.PlanRestriction `json:"plan_restriction" validate:"omitempty,oneof=all plus pro master"`
}

// UpdateCouponInput replaces the mutable fields of a coupon. Code and
// usesCount cannot be changed here.
type UpdateCouponInput struct {
	Description      string                `json:"description" validate:"max=255"`
	FreePeriodMonths int                   `json:"free_period_months" validate:"required,min=1,max=36"`
	MaxUses          int                   `json:"max_uses" validate:"required,min=1"`
	ExpirationDate   *time.Time            `json:"expiration_date,omitempty"`
	PlanRestriction  model.PlanRestriction `json:"plan_restriction" validate:"required,oneof=all plus pro master"`
	IsActive         bool                  `json:"is_active"`
}

// CouponAdminService manages the coupon catalog for administrators
type CouponAdminService struct {
	couponRepo repository.CouponRepository
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewCouponAdminService(couponRepo repository.CouponRepository, logger *zap.Logger) *CouponAdminService {
	return &CouponAdminService{
		couponRepo: couponRepo,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}
}

// GenerateCode returns a random 8 character uppercase alphanumeric code
func (s *CouponAdminService) GenerateCode() (string, error) {
	code, err := gonanoid.Generate(couponCodeAlphabet, couponCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate coupon code: %w", err)
	}
	return code, nil
}

// Create stores a new coupon. A generated code is retried on collision.
func (s *CouponAdminService) Create(ctx context.Context, input CreateCouponInput) (*model.Coupon, error) {
	input.Code = model.NormalizeCouponCode(input.Code)
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	coupon := &model.Coupon{
		Code:             input.Code,
		Description:      input.Description,
		FreePeriodMonths: input.FreePeriodMonths,
		MaxUses:          input.MaxUses,
		ExpirationDate:   dateOrNil(input.ExpirationDate),
		PlanRestriction:  input.PlanRestriction,
		IsActive:         true,
	}
	if coupon.FreePeriodMonths == 0 {
		coupon.FreePeriodMonths = defaultFreePeriodMonths
	}
	if coupon.MaxUses == 0 {
		coupon.MaxUses = defaultMaxUses
	}
	if coupon.PlanRestriction == "" {
		coupon.PlanRestriction = model.PlanRestrictionAll
	}

	generated := coupon.Code == ""
	for attempt := 1; ; attempt++ {
		if generated {
			code, err := s.GenerateCode()
			if err != nil {
				return nil, err
			}
			coupon.Code = code
		}

		err := s.couponRepo.Create(ctx, coupon)
		if err == nil {
			break
		}
		if generated && errors.Is(err, domainErrors.ErrCouponCodeTaken) && attempt < generateCodeAttempts {
			continue
		}
		return nil, err
	}

	s.logger.Info("Coupon created",
		zap.String("code", coupon.Code),
		zap.Int("free_period_months", coupon.FreePeriodMonths),
		zap.Int("max_uses", coupon.MaxUses),
		zap.String("plan_restriction", string(coupon.PlanRestriction)))
	return coupon, nil
}

// Update replaces the mutable fields of code
func (s *CouponAdminService) Update(ctx context.Context, code string, input UpdateCouponInput) (*model.Coupon, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	coupon, err := s.get(ctx, code)
	if err != nil {
		return nil, err
	}
	if input.MaxUses < coupon.UsesCount {
		return nil, domainErrors.NewValidationError("max_uses",
			fmt.Sprintf("must be at least the current uses count (%d)", coupon.UsesCount))
	}

	coupon.Description = input.Description
	coupon.FreePeriodMonths = input.FreePeriodMonths
	coupon.MaxUses = input.MaxUses
	coupon.ExpirationDate = dateOrNil(input.ExpirationDate)
	coupon.PlanRestriction = input.PlanRestriction
	coupon.IsActive = input.IsActive

	if err := s.couponRepo.Update(ctx, coupon); err != nil {
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}

	s.logger.Info("Coupon updated", zap.String("code", coupon.Code), zap.Bool("is_active", coupon.IsActive))
	return coupon, nil
}

// Deactivate stops further redemptions of code. Past redemptions are kept.
func (s *CouponAdminService) Deactivate(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := s.get(ctx, code)
	if err != nil {
		return nil, err
	}
	if !coupon.IsActive {
		return coupon, nil
	}

	coupon.IsActive = false
	if err := s.couponRepo.Update(ctx, coupon); err != nil {
		return nil, fmt.Errorf("failed to deactivate coupon: %w", err)
	}

	s.logger.Info("Coupon deactivated", zap.String("code", coupon.Code))
	return coupon, nil
}

// CorrectUses sets usesCount explicitly. The value must lie in [0, maxUses].
func (s *CouponAdminService) CorrectUses(ctx context.Context, code string, usesCount int) (*model.Coupon, error) {
	coupon, err := s.get(ctx, code)
	if err != nil {
		return nil, err
	}
	if usesCount < 0 || usesCount > coupon.MaxUses {
		return nil, domainErrors.NewValidationError("uses_count",
			fmt.Sprintf("must be between 0 and %d", coupon.MaxUses))
	}

	previous := coupon.UsesCount
	if err := s.couponRepo.SetUsesCount(ctx, coupon.Code, usesCount); err != nil {
		return nil, fmt.Errorf("failed to correct uses count: %w", err)
	}
	coupon.UsesCount = usesCount

	s.logger.Warn("Coupon uses count corrected",
		zap.String("code", coupon.Code),
		zap.Int("previous", previous),
		zap.Int("uses_count", usesCount))
	return coupon, nil
}

// ListRedemptions returns who redeemed code
func (s *CouponAdminService) ListRedemptions(ctx context.Context, code string) ([]*model.CouponRedemption, error) {
	coupon, err := s.get(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.couponRepo.ListRedemptions(ctx, coupon.Code)
}

var usageReportHeader = []string{"Código", "Descrição", "Período Grátis", "Usos", "Máximo de Usos", "Data de Expiração", "Status"}

// UsageReportCSV writes one row per coupon matching filter
func (s *CouponAdminService) UsageReportCSV(ctx context.Context, w io.Writer, filter repository.CouponFilter) error {
	coupons, err := s.couponRepo.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list coupons: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(usageReportHeader); err != nil {
		return err
	}
	for _, c := range coupons {
		expiration := ""
		if c.ExpirationDate != nil {
			expiration = c.ExpirationDate.Format("02/01/2006")
		}
		status := "Inativo"
		if c.IsActive {
			status = "Ativo"
		}
		row := []string{
			c.Code,
			c.Description,
			fmt.Sprintf("%d meses", c.FreePeriodMonths),
			strconv.Itoa(c.UsesCount),
			strconv.Itoa(c.MaxUses),
			expiration,
			status,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *CouponAdminService) get(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, model.NormalizeCouponCode(code))
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	if coupon == nil {
		return nil, domainErrors.ErrCouponNotFound
	}
	return coupon, nil
}

func (s *CouponAdminService) validateInput(input interface{}) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domainErrors.NewValidationError(fe.Field(), fmt.Sprintf("failed %s validation", fe.Tag()))
	}
	return domainErrors.NewValidationError("", err.Error())
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := model.DateOf(*t)
	return &d
}
