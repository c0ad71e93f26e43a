package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
)

// CatalogService covers the plain project and product surface. Writes still go
// through the audited unit of work so even simple CRUD leaves a change trail.
type CatalogService struct {
	uow      ports.UnitOfWork
	projects ports.ProjectReader
	products ports.ProductReader
}

func NewCatalogService(uow ports.UnitOfWork, projects ports.ProjectReader, products ports.ProductReader) *CatalogService {
	return &CatalogService{uow: uow, projects: projects, products: products}
}

func (s *CatalogService) CreateProject(ctx context.Context, project domain.Project, actor domain.ActorContext) (domain.Project, error) {
	if err := project.Validate(); err != nil {
		return domain.Project{}, err
	}

	var created domain.Project
	err := s.uow.RunAudited(ctx, actor, func(sess ports.Session) error {
		var err error
		created, err = sess.Projects().Create(project)
		return err
	})
	if err != nil {
		return domain.Project{}, err
	}
	return created, nil
}

func (s *CatalogService) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	if id <= 0 {
		return domain.Project{}, domain.ErrInvalidInput
	}
	return s.projects.Get(ctx, id)
}

func (s *CatalogService) ListProjects(ctx context.Context, limit int) ([]domain.Project, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.projects.List(ctx, limit)
}

func (s *CatalogService) CreateProduct(ctx context.Context, product domain.Product, actor domain.ActorContext) (domain.Product, error) {
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.uow.RunAudited(ctx, actor, func(sess ports.Session) error {
		var err error
		created, err = sess.Products().Create(product)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return created, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.products.List(ctx, limit)
}
