package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/model"
	"almacenpos/internal/repository"

	"github.com/google/uuid"
)

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDesglose(d model.Desglose) model.Desglose {
	if d == nil {
		return nil
	}
	out := make(model.Desglose, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func cloneVenta(v model.Venta) model.Venta {
	v.MontoRecibido = clonePtr(v.MontoRecibido)
	v.Vuelto = clonePtr(v.Vuelto)
	v.ClienteID = clonePtr(v.ClienteID)
	v.VentaOriginalID = clonePtr(v.VentaOriginalID)
	v.IdempotencyKey = clonePtr(v.IdempotencyKey)
	v.Motivo = clonePtr(v.Motivo)
	v.Items = append([]model.VentaItem(nil), v.Items...)
	return v
}

func cloneTurno(t model.Turno) model.Turno {
	t.Fin = clonePtr(t.Fin)
	t.PagosAcumulados = cloneDesglose(t.PagosAcumulados)
	t.DesglosePagos = cloneDesglose(t.DesglosePagos)
	t.EfectivoEsperado = clonePtr(t.EfectivoEsperado)
	t.EfectivoContado = clonePtr(t.EfectivoContado)
	t.Diferencia = clonePtr(t.Diferencia)
	t.TotalVentas = clonePtr(t.TotalVentas)
	t.CantidadTickets = clonePtr(t.CantidadTickets)
	t.TotalGastos = clonePtr(t.TotalGastos)
	t.ClasificacionDiferencia = clonePtr(t.ClasificacionDiferencia)
	t.Observaciones = clonePtr(t.Observaciones)
	t.Gastos = nil
	return t
}

func duplicado(what string) error {
	return apperr.Wrap(apperr.KindDuplicate, "registro duplicado: "+what, repository.ErrDuplicate)
}

// ── Productos ─────────────────────────────────────────────────────────────────

type productoRepo struct {
	s *Store
	j *journal
}

func (r *productoRepo) Create(_ context.Context, p *model.Producto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, ok := r.s.productos[p.ID]; ok {
		return duplicado("producto")
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.productos[p.ID] = *p
	id := p.ID
	r.j.record(func() {
		r.s.mu.Lock()
		delete(r.s.productos, id)
		r.s.mu.Unlock()
	})
	return nil
}

func (r *productoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.productos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.CodigoBarras = clonePtr(p.CodigoBarras)
	return &p, nil
}

func (r *productoRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	return r.FindByID(ctx, id)
}

func (r *productoRepo) UpdateStock(_ context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return errors.New("memory: stock_actual >= 0 check violated")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.productos[id]
	if !ok {
		return repository.ErrNotFound
	}
	prev := p.StockActual
	p.StockActual = stock
	p.UpdatedAt = time.Now()
	r.s.productos[id] = p
	r.j.record(func() {
		r.s.mu.Lock()
		p := r.s.productos[id]
		p.StockActual = prev
		r.s.productos[id] = p
		r.s.mu.Unlock()
	})
	return nil
}

func (r *productoRepo) list(pred func(model.Producto) bool) []model.Producto {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Producto
	for _, p := range r.s.productos {
		if pred(p) {
			p.CodigoBarras = clonePtr(p.CodigoBarras)
			out = append(out, p)
		}
	}
	return out
}

func (r *productoRepo) List(_ context.Context) ([]model.Producto, error) {
	out := r.list(func(p model.Producto) bool { return p.Activo })
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *productoRepo) ListStockBajo(_ context.Context) ([]model.Producto, error) {
	out := r.list(func(p model.Producto) bool { return p.Activo && p.EsStockBajo() })
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockActual != out[j].StockActual {
			return out[i].StockActual < out[j].StockActual
		}
		return out[i].Nombre < out[j].Nombre
	})
	return out, nil
}

// ── Clientes ──────────────────────────────────────────────────────────────────

type clienteRepo struct {
	s *Store
	j *journal
}

func (r *clienteRepo) Create(_ context.Context, c *model.Cliente) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, ok := r.s.clientes[c.ID]; ok {
		return duplicado("cliente")
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	stored := *c
	stored.Movimientos = nil
	stored.Telefono = clonePtr(c.Telefono)
	r.s.clientes[c.ID] = stored
	id := c.ID
	r.j.record(func() {
		r.s.mu.Lock()
		delete(r.s.clientes, id)
		r.s.mu.Unlock()
	})
	return nil
}

func (r *clienteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Cliente, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clientes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Telefono = clonePtr(c.Telefono)
	return &c, nil
}

func (r *clienteRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	return r.FindByID(ctx, id)
}

func (r *clienteRepo) Update(_ context.Context, c *model.Cliente) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.clientes[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := prev
	next.Saldo = c.Saldo
	next.UltimaSecuencia = c.UltimaSecuencia
	next.Autorizado = c.Autorizado
	next.UpdatedAt = time.Now()
	r.s.clientes[c.ID] = next
	r.j.record(func() {
		r.s.mu.Lock()
		r.s.clientes[prev.ID] = prev
		r.s.mu.Unlock()
	})
	return nil
}

func (r *clienteRepo) List(_ context.Context, f repository.ClienteFiltro) ([]model.Cliente, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	nombre := strings.ToLower(f.Nombre)
	var out []model.Cliente
	for _, c := range r.s.clientes {
		if f.SoloConSaldo && !c.Saldo.IsPositive() {
			continue
		}
		if nombre != "" && !strings.Contains(strings.ToLower(c.Nombre), nombre) {
			continue
		}
		c.Telefono = clonePtr(c.Telefono)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *clienteRepo) AppendMovimiento(_ context.Context, m *model.MovimientoCliente) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clientes[m.ClienteID]; !ok {
		return repository.ErrNotFound
	}
	hist := r.s.movimientos[m.ClienteID]
	if m.Secuencia != int64(len(hist))+1 {
		return duplicado("secuencia de movimiento")
	}
	if m.IdempotencyKey != nil {
		if _, dup := r.s.movPorClave[*m.IdempotencyKey]; dup {
			return duplicado("idempotency_key")
		}
		r.s.movPorClave[*m.IdempotencyKey] = m.ID
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	stored := *m
	stored.VentaID = clonePtr(m.VentaID)
	stored.IdempotencyKey = clonePtr(m.IdempotencyKey)
	r.s.movimientos[m.ClienteID] = append(hist, stored)

	clienteID, n, key := m.ClienteID, len(hist), m.IdempotencyKey
	r.j.record(func() {
		r.s.mu.Lock()
		r.s.movimientos[clienteID] = r.s.movimientos[clienteID][:n]
		if key != nil {
			delete(r.s.movPorClave, *key)
		}
		r.s.mu.Unlock()
	})
	return nil
}

func (r *clienteRepo) ListMovimientos(_ context.Context, clienteID uuid.UUID, desde, hasta *time.Time) ([]model.MovimientoCliente, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.MovimientoCliente
	for _, m := range r.s.movimientos[clienteID] {
		if desde != nil && m.CreatedAt.Before(*desde) {
			continue
		}
		if hasta != nil && !m.CreatedAt.Before(*hasta) {
			continue
		}
		m.VentaID = clonePtr(m.VentaID)
		m.IdempotencyKey = clonePtr(m.IdempotencyKey)
		out = append(out, m)
	}
	return out, nil
}

func (r *clienteRepo) FindMovimientoByKey(_ context.Context, key string) (*model.MovimientoCliente, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.movPorClave[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, movs := range r.s.movimientos {
		for _, m := range movs {
			if m.ID == id {
				m.VentaID = clonePtr(m.VentaID)
				m.IdempotencyKey = clonePtr(m.IdempotencyKey)
				return &m, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

// ── Ventas ────────────────────────────────────────────────────────────────────

type ventaRepo struct {
	s *Store
	j *journal
}

func (r *ventaRepo) Create(_ context.Context, v *model.Venta) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if _, ok := r.s.ventas[v.ID]; ok {
		return duplicado("venta")
	}
	if v.IdempotencyKey != nil {
		if _, dup := r.s.ventaClave[*v.IdempotencyKey]; dup {
			return duplicado("idempotency_key")
		}
		r.s.ventaClave[*v.IdempotencyKey] = v.ID
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	for i := range v.Items {
		if v.Items[i].ID == uuid.Nil {
			v.Items[i].ID = uuid.New()
		}
		v.Items[i].VentaID = v.ID
	}
	r.s.ventas[v.ID] = cloneVenta(*v)
	r.s.ventaOrden = append(r.s.ventaOrden, v.ID)

	id, key := v.ID, v.IdempotencyKey
	r.j.record(func() {
		r.s.mu.Lock()
		delete(r.s.ventas, id)
		for i := len(r.s.ventaOrden) - 1; i >= 0; i-- {
			if r.s.ventaOrden[i] == id {
				r.s.ventaOrden = append(r.s.ventaOrden[:i], r.s.ventaOrden[i+1:]...)
				break
			}
		}
		if key != nil {
			delete(r.s.ventaClave, *key)
		}
		r.s.mu.Unlock()
	})
	return nil
}

func (r *ventaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.ventas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v = cloneVenta(v)
	return &v, nil
}

func (r *ventaRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Venta, error) {
	r.s.mu.RLock()
	id, ok := r.s.ventaClave[key]
	r.s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// NextTicketNumber is never undone, mirroring a database sequence.
func (r *ventaRepo) NextTicketNumber(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.ticket++
	return r.s.ticket, nil
}

func (r *ventaRepo) filter(pred func(*model.Venta) bool) []model.Venta {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Venta
	for _, id := range r.s.ventaOrden {
		v := r.s.ventas[id]
		if pred(&v) {
			out = append(out, cloneVenta(v))
		}
	}
	return out
}

func (r *ventaRepo) ListByTurno(_ context.Context, turnoID uuid.UUID) ([]model.Venta, error) {
	return r.filter(func(v *model.Venta) bool { return v.TurnoID == turnoID }), nil
}

func (r *ventaRepo) ListDevoluciones(_ context.Context, ventaOriginalID uuid.UUID) ([]model.Venta, error) {
	return r.filter(func(v *model.Venta) bool {
		return v.EsDevolucion() && v.VentaOriginalID != nil && *v.VentaOriginalID == ventaOriginalID
	}), nil
}

// ── Turnos ────────────────────────────────────────────────────────────────────

type turnoRepo struct {
	s *Store
	j *journal
}

func (r *turnoRepo) Create(_ context.Context, t *model.Turno) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, ok := r.s.turnos[t.ID]; ok {
		return duplicado("turno")
	}
	if t.Estado == model.TurnoAbierto {
		for _, other := range r.s.turnos {
			if other.VendedorID == t.VendedorID && other.Estado == model.TurnoAbierto {
				return duplicado("turno abierto del vendedor")
			}
		}
	}
	r.s.turnos[t.ID] = cloneTurno(*t)
	id := t.ID
	r.j.record(func() {
		r.s.mu.Lock()
		delete(r.s.turnos, id)
		r.s.mu.Unlock()
	})
	return nil
}

func (r *turnoRepo) withGastos(t model.Turno) *model.Turno {
	out := cloneTurno(t)
	for _, g := range r.s.gastos[t.ID] {
		g.Proveedor = clonePtr(g.Proveedor)
		g.Descripcion = clonePtr(g.Descripcion)
		out.Gastos = append(out.Gastos, g)
	}
	return &out
}

func (r *turnoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Turno, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.turnos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withGastos(t), nil
}

func (r *turnoRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Turno, error) {
	return r.FindByID(ctx, id)
}

func (r *turnoRepo) FindAbiertoPorVendedor(_ context.Context, vendedorID uuid.UUID) (*model.Turno, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.turnos {
		if t.VendedorID == vendedorID && t.Estado == model.TurnoAbierto {
			return r.withGastos(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *turnoRepo) Update(_ context.Context, t *model.Turno) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.turnos[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	r.s.turnos[t.ID] = cloneTurno(*t)
	r.j.record(func() {
		r.s.mu.Lock()
		r.s.turnos[prev.ID] = prev
		r.s.mu.Unlock()
	})
	return nil
}

func (r *turnoRepo) CreateGasto(_ context.Context, g *model.GastoTurno) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.turnos[g.TurnoID]; !ok {
		return repository.ErrNotFound
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	stored := *g
	stored.Proveedor = clonePtr(g.Proveedor)
	stored.Descripcion = clonePtr(g.Descripcion)
	n := len(r.s.gastos[g.TurnoID])
	r.s.gastos[g.TurnoID] = append(r.s.gastos[g.TurnoID], stored)

	turnoID := g.TurnoID
	r.j.record(func() {
		r.s.mu.Lock()
		r.s.gastos[turnoID] = r.s.gastos[turnoID][:n]
		r.s.mu.Unlock()
	})
	return nil
}

func (r *turnoRepo) ListAbiertos(_ context.Context) ([]model.Turno, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Turno
	for _, t := range r.s.turnos {
		if t.Estado == model.TurnoAbierto {
			out = append(out, cloneTurno(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Inicio.Before(out[j].Inicio) })
	return out, nil
}

func (r *turnoRepo) ListCerrados(_ context.Context, page, limit int) ([]model.Turno, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []model.Turno
	for _, t := range r.s.turnos {
		if t.Estado == model.TurnoCerrado {
			all = append(all, cloneTurno(t))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Fin.After(*all[j].Fin) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := min(start+limit, len(all))
	return all[start:end], total, nil
}

// ── Usuarios ──────────────────────────────────────────────────────────────────

type usuarioRepo struct {
	s *Store
	j *journal
}

func (r *usuarioRepo) Create(_ context.Context, u *model.Usuario) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, other := range r.s.usuarios {
		if other.Username == u.Username {
			return duplicado("username")
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	stored := *u
	stored.Email = clonePtr(u.Email)
	r.s.usuarios[u.ID] = stored
	id := u.ID
	r.j.record(func() {
		r.s.mu.Lock()
		delete(r.s.usuarios, id)
		r.s.mu.Unlock()
	})
	return nil
}

func (r *usuarioRepo) FindByUsername(_ context.Context, username string) (*model.Usuario, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.usuarios {
		if !u.Activo {
			continue
		}
		if u.Username == username || (u.Email != nil && strings.EqualFold(*u.Email, username)) {
			u.Email = clonePtr(u.Email)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *usuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.usuarios[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Email = clonePtr(u.Email)
	return &u, nil
}
