package repository

import (
	"context"
	"errors"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormPlanRepository implements the PlanRepository interface
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GORM plan catalog repository
func NewGormPlanRepository(db *gorm.DB) repository.PlanRepository {
	return &GormPlanRepository{
		db: db,
	}
}

// InsurancePlans GORM model for database mapping
type InsurancePlans struct {
	ID           uint               `gorm:"primaryKey"`
	ExternalID   string             `gorm:"column:external_id;uniqueIndex:idx_plans_natural_key"`
	ProviderID   string             `gorm:"column:provider_id;uniqueIndex:idx_plans_natural_key"`
	Name         string             `gorm:"column:name"`
	Currency     string             `gorm:"column:currency"`
	Destinations []PlanDestinations `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
	Coverages    []PlanCoverages    `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name
func (InsurancePlans) TableName() string {
	return "m_insurance_plans"
}

// PlanDestinations GORM model for per-destination pricing
type PlanDestinations struct {
	ID       uint           `gorm:"primaryKey"`
	PlanID   uint           `gorm:"column:plan_id;index"`
	Slug     string         `gorm:"column:slug"`
	AgeBands []PlanAgeBands `gorm:"foreignKey:DestinationID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name
func (PlanDestinations) TableName() string {
	return "m_plan_destinations"
}

// PlanAgeBands GORM model for age-banded prices
type PlanAgeBands struct {
	ID            uint    `gorm:"primaryKey"`
	DestinationID uint    `gorm:"column:destination_id;index"`
	MinAge        int     `gorm:"column:min_age"`
	MaxAge        int     `gorm:"column:max_age"`
	Price         float64 `gorm:"column:price"`
}

// TableName overrides the default table name
func (PlanAgeBands) TableName() string {
	return "m_plan_age_bands"
}

// PlanCoverages GORM model for coverage links
type PlanCoverages struct {
	ID     uint   `gorm:"primaryKey"`
	PlanID uint   `gorm:"column:plan_id;index"`
	Name   string `gorm:"column:name"`
}

// TableName overrides the default table name
func (PlanCoverages) TableName() string {
	return "m_plan_coverages"
}

// FindMany returns catalog plans matching the filter, paginated
func (r *GormPlanRepository) FindMany(ctx context.Context, offset, limit int, filter repository.PlanFilter) ([]*entity.InsurancePlan, error) {
	query := r.db.WithContext(ctx).
		Model(&InsurancePlans{}).
		Preload("Destinations.AgeBands").
		Preload("Coverages").
		Distinct("m_insurance_plans.*")

	if filter.ActiveProviders {
		query = query.Where("m_insurance_plans.provider_id IN (?)",
			r.db.Model(&ProviderCredentials{}).Select("provider_id").Where("active = ?", true))
	}
	if filter.DestinationSlug != "" || filter.Age != nil {
		query = query.Joins("JOIN m_plan_destinations d ON d.plan_id = m_insurance_plans.id")
		if filter.DestinationSlug != "" {
			query = query.Where("d.slug = ?", filter.DestinationSlug)
		}
		if filter.Age != nil {
			query = query.
				Joins("JOIN m_plan_age_bands b ON b.destination_id = d.id").
				Where("b.min_age <= ? AND b.max_age >= ?", *filter.Age, *filter.Age)
		}
	}

	var plans []InsurancePlans
	result := query.Offset(offset).Limit(limit).Find(&plans)
	if result.Error != nil {
		return nil, result.Error
	}

	entities := make([]*entity.InsurancePlan, 0, len(plans))
	for i := range plans {
		entities = append(entities, toPlanEntity(&plans[i]))
	}
	return entities, nil
}

// FindOne finds a plan by primary key
func (r *GormPlanRepository) FindOne(ctx context.Context, id uint) (*entity.InsurancePlan, error) {
	var plan InsurancePlans
	result := r.db.WithContext(ctx).
		Preload("Destinations.AgeBands").
		Preload("Coverages").
		First(&plan, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return toPlanEntity(&plan), nil
}

// FindByExternalID finds a plan by its natural key
func (r *GormPlanRepository) FindByExternalID(ctx context.Context, externalID, providerID string) (*entity.InsurancePlan, error) {
	var plan InsurancePlans
	result := r.db.WithContext(ctx).
		Preload("Destinations.AgeBands").
		Preload("Coverages").
		Where("external_id = ? AND provider_id = ?", externalID, providerID).
		First(&plan)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return toPlanEntity(&plan), nil
}

// Upsert inserts a new plan or diff-updates an existing one. It reports
// whether any row was written, so an unchanged catalog costs zero writes.
func (r *GormPlanRepository) Upsert(ctx context.Context, plan *entity.InsurancePlan) (bool, error) {
	existing, err := r.FindByExternalID(ctx, plan.ExternalID, plan.ProviderID)
	if err != nil {
		return false, err
	}

	if existing == nil {
		model := toPlanModel(plan)
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	if plansEqual(existing, plan) {
		return false, nil
	}

	// Rewrite only what changed: scalar columns in place, nested pricing
	// and coverage links by replacing the association graphs.
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing.Name != plan.Name || existing.Currency != plan.Currency {
			if err := tx.Model(&InsurancePlans{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{"name": plan.Name, "currency": plan.Currency}).Error; err != nil {
				return err
			}
		}

		if !destinationsEqual(existing.Destinations, plan.Destinations) {
			var oldDests []PlanDestinations
			if err := tx.Where("plan_id = ?", existing.ID).Find(&oldDests).Error; err != nil {
				return err
			}
			for i := range oldDests {
				if err := tx.Where("destination_id = ?", oldDests[i].ID).Delete(&PlanAgeBands{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("plan_id = ?", existing.ID).Delete(&PlanDestinations{}).Error; err != nil {
				return err
			}
			for _, dest := range plan.Destinations {
				model := PlanDestinations{PlanID: existing.ID, Slug: dest.Slug}
				for _, band := range dest.AgeBands {
					model.AgeBands = append(model.AgeBands, PlanAgeBands{
						MinAge: band.MinAge,
						MaxAge: band.MaxAge,
						Price:  band.Price,
					})
				}
				if err := tx.Create(&model).Error; err != nil {
					return err
				}
			}
		}

		if !coveragesEqual(existing.Coverages, plan.Coverages) {
			if err := tx.Where("plan_id = ?", existing.ID).Delete(&PlanCoverages{}).Error; err != nil {
				return err
			}
			for _, name := range plan.Coverages {
				if err := tx.Create(&PlanCoverages{PlanID: existing.ID, Name: name}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a plan and its nested rows
func (r *GormPlanRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dests []PlanDestinations
		if err := tx.Where("plan_id = ?", id).Find(&dests).Error; err != nil {
			return err
		}
		for i := range dests {
			if err := tx.Where("destination_id = ?", dests[i].ID).Delete(&PlanAgeBands{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("plan_id = ?", id).Delete(&PlanDestinations{}).Error; err != nil {
			return err
		}
		if err := tx.Where("plan_id = ?", id).Delete(&PlanCoverages{}).Error; err != nil {
			return err
		}
		return tx.Delete(&InsurancePlans{}, id).Error
	})
}

func toPlanModel(plan *entity.InsurancePlan) *InsurancePlans {
	model := &InsurancePlans{
		ExternalID: plan.ExternalID,
		ProviderID: plan.ProviderID,
		Name:       plan.Name,
		Currency:   plan.Currency,
	}
	for _, dest := range plan.Destinations {
		destModel := PlanDestinations{Slug: dest.Slug}
		for _, band := range dest.AgeBands {
			destModel.AgeBands = append(destModel.AgeBands, PlanAgeBands{
				MinAge: band.MinAge,
				MaxAge: band.MaxAge,
				Price:  band.Price,
			})
		}
		model.Destinations = append(model.Destinations, destModel)
	}
	for _, name := range plan.Coverages {
		model.Coverages = append(model.Coverages, PlanCoverages{Name: name})
	}
	return model
}

// Convert GORM model to domain entity
func toPlanEntity(plan *InsurancePlans) *entity.InsurancePlan {
	result := &entity.InsurancePlan{
		ID:         plan.ID,
		ExternalID: plan.ExternalID,
		ProviderID: plan.ProviderID,
		Name:       plan.Name,
		Currency:   plan.Currency,
		CreatedAt:  plan.CreatedAt,
		UpdatedAt:  plan.UpdatedAt,
	}
	for _, dest := range plan.Destinations {
		destEntity := entity.PlanDestination{Slug: dest.Slug}
		for _, band := range dest.AgeBands {
			destEntity.AgeBands = append(destEntity.AgeBands, entity.PlanAgeBand{
				MinAge: band.MinAge,
				MaxAge: band.MaxAge,
				Price:  band.Price,
			})
		}
		result.Destinations = append(result.Destinations, destEntity)
	}
	for _, cov := range plan.Coverages {
		result.Coverages = append(result.Coverages, cov.Name)
	}
	return result
}

func plansEqual(a, b *entity.InsurancePlan) bool {
	return a.Name == b.Name &&
		a.Currency == b.Currency &&
		destinationsEqual(a.Destinations, b.Destinations) &&
		coveragesEqual(a.Coverages, b.Coverages)
}

func destinationsEqual(a, b []entity.PlanDestination) bool {
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string][]entity.PlanAgeBand, len(a))
	for _, dest := range a {
		byName[dest.Slug] = dest.AgeBands
	}
	for _, dest := range b {
		bands, ok := byName[dest.Slug]
		if !ok || len(bands) != len(dest.AgeBands) {
			return false
		}
		for i := range bands {
			if bands[i] != dest.AgeBands[i] {
				return false
			}
		}
	}
	return true
}

func coveragesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, name := range a {
		seen[name] = true
	}
	for _, name := range b {
		if !seen[name] {
			return false
		}
	}
	return true
}
