package repository

import (
	"context"
	"time"

	"almacenpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error)
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *clienteRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *clienteRepo) Update(ctx context.Context, c *model.Cliente) error {
	res := r.db.WithContext(ctx).Model(&model.Cliente{}).Where("id = ?", c.ID).Updates(map[string]any{
		"saldo":            c.Saldo,
		"ultima_secuencia": c.UltimaSecuencia,
		"autorizado":       c.Autorizado,
		"updated_at":       time.Now(),
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clienteRepo) List(ctx context.Context, f ClienteFiltro) ([]model.Cliente, error) {
	q := r.db.WithContext(ctx).Model(&model.Cliente{})
	if f.SoloConSaldo {
		q = q.Where("saldo > 0")
	}
	if f.Nombre != "" {
		q = q.Where("nombre ILIKE ?", "%"+f.Nombre+"%")
	}
	var cs []model.Cliente
	err := q.Order("nombre ASC").Find(&cs).Error
	return cs, translate(err)
}

func (r *clienteRepo) AppendMovimiento(ctx context.Context, m *model.MovimientoCliente) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *clienteRepo) ListMovimientos(ctx context.Context, clienteID uuid.UUID, desde, hasta *time.Time) ([]model.MovimientoCliente, error) {
	q := r.db.WithContext(ctx).Where("cliente_id = ?", clienteID)
	if desde != nil {
		q = q.Where("created_at >= ?", *desde)
	}
	if hasta != nil {
		q = q.Where("created_at < ?", *hasta)
	}
	var movs []model.MovimientoCliente
	err := q.Order("secuencia ASC").Find(&movs).Error
	return movs, translate(err)
}

func (r *clienteRepo) FindMovimientoByKey(ctx context.Context, key string) (*model.MovimientoCliente, error) {
	var m model.MovimientoCliente
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}
