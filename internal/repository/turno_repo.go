package repository

import (
	"context"

	"almacenpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type turnoRepo struct{ db *gorm.DB }

func NewTurnoRepository(db *gorm.DB) TurnoRepository { return &turnoRepo{db: db} }

func (r *turnoRepo) Create(ctx context.Context, t *model.Turno) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error)
}

func (r *turnoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := r.db.WithContext(ctx).
		Preload("Gastos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *turnoRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	// Preload runs as a second query; it must not carry the FOR UPDATE clause.
	if err := r.db.WithContext(ctx).Where("turno_id = ?", id).Order("created_at ASC").Find(&t.Gastos).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *turnoRepo) FindAbiertoPorVendedor(ctx context.Context, vendedorID uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := r.db.WithContext(ctx).
		Where("vendedor_id = ? AND estado = ?", vendedorID, model.TurnoAbierto).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *turnoRepo) Update(ctx context.Context, t *model.Turno) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(t).Error)
}

func (r *turnoRepo) CreateGasto(ctx context.Context, g *model.GastoTurno) error {
	return translate(r.db.WithContext(ctx).Create(g).Error)
}

func (r *turnoRepo) ListAbiertos(ctx context.Context) ([]model.Turno, error) {
	var ts []model.Turno
	err := r.db.WithContext(ctx).Where("estado = ?", model.TurnoAbierto).Order("inicio ASC").Find(&ts).Error
	return ts, translate(err)
}

func (r *turnoRepo) ListCerrados(ctx context.Context, page, limit int) ([]model.Turno, int64, error) {
	var ts []model.Turno
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Turno{}).Where("estado = ?", model.TurnoCerrado)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	err := q.Order("fin DESC").Offset((page - 1) * limit).Limit(limit).Find(&ts).Error
	return ts, total, translate(err)
}
