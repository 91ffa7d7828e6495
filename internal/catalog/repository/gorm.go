package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	catalogerrors "cowork/internal/catalog/errors"
	"cowork/pkg/config"
	"cowork/pkg/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const mysqlDuplicateEntry = 1062

type resourceRecord struct {
	ID            string         `gorm:"column:id;primaryKey;type:varchar(64)"`
	Kind          string         `gorm:"column:kind;type:varchar(16);not null;index:idx_resources_kind_status,priority:1"`
	Name          string         `gorm:"column:name;type:varchar(100);not null"`
	Floor         int            `gorm:"column:floor;not null;default:0"`
	Capacity      int            `gorm:"column:capacity;not null"`
	PerHourCents  int64          `gorm:"column:per_hour_cents;not null;default:0"`
	PerDayCents   int64          `gorm:"column:per_day_cents;not null;default:0"`
	PerMonthCents int64          `gorm:"column:per_month_cents;not null;default:0"`
	PricingUnit   string         `gorm:"column:pricing_unit;type:varchar(16);not null"`
	Amenities     datatypes.JSON `gorm:"column:amenities"`
	Status        string         `gorm:"column:status;type:varchar(32);not null;index:idx_resources_kind_status,priority:2"`
	Version       int            `gorm:"column:version;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
}

func (resourceRecord) TableName() string { return "resources" }

type revisionRecord struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ResourceID    string    `gorm:"column:resource_id;type:varchar(64);not null;uniqueIndex:idx_revisions_resource_version,priority:1"`
	Version       int       `gorm:"column:version;not null;uniqueIndex:idx_revisions_resource_version,priority:2"`
	PerHourCents  int64     `gorm:"column:per_hour_cents;not null"`
	PerDayCents   int64     `gorm:"column:per_day_cents;not null"`
	PerMonthCents int64     `gorm:"column:per_month_cents;not null"`
	Status        string    `gorm:"column:status;type:varchar(32);not null"`
	ChangedBy     string    `gorm:"column:changed_by;type:varchar(128)"`
	ChangedAt     time.Time `gorm:"column:changed_at"`
}

func (revisionRecord) TableName() string { return "resource_revisions" }

// Models lists the tables owned by the catalog, in migration order.
func Models() []any {
	return []any{&resourceRecord{}, &revisionRecord{}}
}

type gormResourceRepository struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewGormResourceRepository(cfg *config.Config) ResourceRepository {
	return &gormResourceRepository{
		cfg: cfg,
		db:  cfg.Client.MySQL,
	}
}

func (r *gormResourceRepository) Create(ctx context.Context, resource *model.Resource, rev *model.ResourceRevision) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	record, err := toResourceRecord(resource)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return tx.Create(toRevisionRecord(rev)).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", catalogerrors.ErrDuplicate, resource.ID)
		}
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (r *gormResourceRepository) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var record resourceRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return fromResourceRecord(&record)
}

func (r *gormResourceRepository) List(ctx context.Context, filter model.ResourceFilter) ([]*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var records []resourceRecord
	q := applyFilter(r.db.WithContext(ctx).Model(&resourceRecord{}), filter).Order("id")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	resources := make([]*model.Resource, 0, len(records))
	for i := range records {
		res, err := fromResourceRecord(&records[i])
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, nil
}

func (r *gormResourceRepository) Count(ctx context.Context, filter model.ResourceFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&resourceRecord{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

func applyFilter(q *gorm.DB, filter model.ResourceFilter) *gorm.DB {
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.MinCapacity > 0 {
		q = q.Where("capacity >= ?", filter.MinCapacity)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Floor != nil {
		q = q.Where("floor = ?", *filter.Floor)
	}
	for _, tag := range filter.Amenities {
		q = q.Where("JSON_CONTAINS(amenities, JSON_QUOTE(?))", tag)
	}
	return q
}

func (r *gormResourceRepository) Update(ctx context.Context, resource *model.Resource, expectedVersion int, rev *model.ResourceRevision) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&resourceRecord{}).
			Where("id = ? AND version = ?", resource.ID, expectedVersion).
			Updates(map[string]any{
				"per_hour_cents":  resource.Rates.PerHourCents,
				"per_day_cents":   resource.Rates.PerDayCents,
				"per_month_cents": resource.Rates.PerMonthCents,
				"status":          string(resource.Status),
				"version":         resource.Version,
				"updated_at":      resource.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update resource: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&resourceRecord{}).Where("id = ?", resource.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check resource existence: %w", err)
			}
			if count == 0 {
				return catalogerrors.ErrNotFound
			}
			return catalogerrors.ErrVersionConflict
		}

		if err := tx.Create(toRevisionRecord(rev)).Error; err != nil {
			if isDuplicateKey(err) {
				return catalogerrors.ErrVersionConflict
			}
			return fmt.Errorf("failed to append resource revision: %w", err)
		}
		return nil
	})
}

func (r *gormResourceRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&resourceRecord{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete resource: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return catalogerrors.ErrNotFound
		}
		if err := tx.Where("resource_id = ?", id).Delete(&revisionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete resource revisions: %w", err)
		}
		return nil
	})
}

func (r *gormResourceRepository) Revisions(ctx context.Context, id string) ([]*model.ResourceRevision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var records []revisionRecord
	if err := r.db.WithContext(ctx).Where("resource_id = ?", id).Order("version").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list resource revisions: %w", err)
	}

	revisions := make([]*model.ResourceRevision, 0, len(records))
	for _, rec := range records {
		revisions = append(revisions, &model.ResourceRevision{
			ResourceID: rec.ResourceID,
			Version:    rec.Version,
			Rates: model.RateCard{
				PerHourCents:  rec.PerHourCents,
				PerDayCents:   rec.PerDayCents,
				PerMonthCents: rec.PerMonthCents,
			},
			Status:    model.ResourceStatus(rec.Status),
			ChangedBy: rec.ChangedBy,
			ChangedAt: rec.ChangedAt,
		})
	}
	return revisions, nil
}

func isDuplicateKey(err error) bool {
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		return merr.Number == mysqlDuplicateEntry
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func toResourceRecord(r *model.Resource) (*resourceRecord, error) {
	amenities := r.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	encoded, err := json.Marshal(amenities)
	if err != nil {
		return nil, fmt.Errorf("failed to encode amenities: %w", err)
	}
	return &resourceRecord{
		ID:            r.ID,
		Kind:          string(r.Kind),
		Name:          r.Name,
		Floor:         r.Floor,
		Capacity:      r.Capacity,
		PerHourCents:  r.Rates.PerHourCents,
		PerDayCents:   r.Rates.PerDayCents,
		PerMonthCents: r.Rates.PerMonthCents,
		PricingUnit:   string(r.PricingUnit),
		Amenities:     datatypes.JSON(encoded),
		Status:        string(r.Status),
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func fromResourceRecord(rec *resourceRecord) (*model.Resource, error) {
	amenities := []string{}
	if len(rec.Amenities) > 0 {
		if err := json.Unmarshal(rec.Amenities, &amenities); err != nil {
			return nil, fmt.Errorf("failed to decode amenities of %s: %w", rec.ID, err)
		}
	}
	return &model.Resource{
		ID:       rec.ID,
		Kind:     model.ResourceKind(rec.Kind),
		Name:     rec.Name,
		Floor:    rec.Floor,
		Capacity: rec.Capacity,
		Rates: model.RateCard{
			PerHourCents:  rec.PerHourCents,
			PerDayCents:   rec.PerDayCents,
			PerMonthCents: rec.PerMonthCents,
		},
		PricingUnit: model.PricingUnit(rec.PricingUnit),
		Amenities:   amenities,
		Status:      model.ResourceStatus(rec.Status),
		Version:     rec.Version,
		CreatedAt:   rec.CreatedAt.UTC(),
		UpdatedAt:   rec.UpdatedAt.UTC(),
	}, nil
}

func toRevisionRecord(rev *model.ResourceRevision) *revisionRecord {
	return &revisionRecord{
		ResourceID:    rev.ResourceID,
		Version:       rev.Version,
		PerHourCents:  rev.Rates.PerHourCents,
		PerDayCents:   rev.Rates.PerDayCents,
		PerMonthCents: rev.Rates.PerMonthCents,
		Status:        string(rev.Status),
		ChangedBy:     rev.ChangedBy,
		ChangedAt:     rev.ChangedAt,
	}
}
