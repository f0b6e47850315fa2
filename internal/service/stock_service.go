package service

import (
	"context"

	"almacenpos/internal/dto"
	"almacenpos/internal/lock"
	"almacenpos/internal/repository"

	"github.com/google/uuid"
)

type StockService interface {
	// ReservarYAplicar decrements (venta) or increments (devolucion) stock for
	// every line as one unit. A shortage on any line applies nothing.
	ReservarYAplicar(ctx context.Context, lineas []Linea, dir Direccion) error
	EsStockBajo(ctx context.Context, productoID uuid.UUID) (*dto.StockBajoResponse, error)
	Alertas(ctx context.Context) ([]dto.ProductoResponse, error)
	Listar(ctx context.Context) ([]dto.ProductoResponse, error)
}

type stockService struct {
	uow    repository.UnitOfWork
	repos  repository.Repositories
	locker lock.Locker
}

func NewStockService(uow repository.UnitOfWork, repos repository.Repositories, locker lock.Locker) StockService {
	return &stockService{uow: uow, repos: repos, locker: locker}
}

func (s *stockService) ReservarYAplicar(ctx context.Context, lineas []Linea, dir Direccion) error {
	unidas, err := unirLineas(lineas)
	if err != nil {
		return err
	}
	keys := make([]lock.Key, len(unidas))
	for i, l := range unidas {
		keys[i] = lock.Producto(l.ProductoID)
	}
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()

	return s.uow.Do(ctx, func(r repository.Repositories) error {
		productos, err := cargarProductos(ctx, r.Productos, unidas)
		if err != nil {
			return err
		}
		return aplicarStock(ctx, r.Productos, productos, unidas, dir)
	})
}

func (s *stockService) EsStockBajo(ctx context.Context, productoID uuid.UUID) (*dto.StockBajoResponse, error) {
	p, err := s.repos.Productos.FindByID(ctx, productoID)
	if err != nil {
		return nil, noEncontrado(err, "producto", productoID)
	}
	return &dto.StockBajoResponse{
		ProductoID:  p.ID.String(),
		StockBajo:   p.EsStockBajo(),
		StockActual: p.StockActual,
		StockMinimo: p.StockMinimo,
	}, nil
}

func (s *stockService) Alertas(ctx context.Context) ([]dto.ProductoResponse, error) {
	ps, err := s.repos.Productos.ListStockBajo(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.ProductoResponse, len(ps))
	for i := range ps {
		resp[i] = productoToResponse(&ps[i])
	}
	return resp, nil
}

func (s *stockService) Listar(ctx context.Context) ([]dto.ProductoResponse, error) {
	ps, err := s.repos.Productos.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.ProductoResponse, len(ps))
	for i := range ps {
		resp[i] = productoToResponse(&ps[i])
	}
	return resp, nil
}
