package repository

import (
	"context"

	"almacenpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

// Create inserts the sale and its items.
func (r *ventaRepo) Create(ctx context.Context, v *model.Venta) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items").First(&v, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *ventaRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items").Where("idempotency_key = ?", key).First(&v).Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *ventaRepo) NextTicketNumber(ctx context.Context) (int64, error) {
	// Sequence values are never rolled back, so aborted sales leave gaps.
	var num int64
	err := r.db.WithContext(ctx).Raw("SELECT nextval('ventas_numero_ticket_seq')").Scan(&num).Error
	return num, translate(err)
}

func (r *ventaRepo) ListByTurno(ctx context.Context, turnoID uuid.UUID) ([]model.Venta, error) {
	var vs []model.Venta
	err := r.db.WithContext(ctx).Preload("Items").
		Where("turno_id = ?", turnoID).
		Order("numero_ticket ASC").
		Find(&vs).Error
	return vs, translate(err)
}

func (r *ventaRepo) ListDevoluciones(ctx context.Context, ventaOriginalID uuid.UUID) ([]model.Venta, error) {
	var vs []model.Venta
	err := r.db.WithContext(ctx).Preload("Items").
		Where("venta_original_id = ? AND tipo = ?", ventaOriginalID, model.TipoVentaDevolucion).
		Order("numero_ticket ASC").
		Find(&vs).Error
	return vs, translate(err)
}
