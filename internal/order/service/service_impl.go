package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/simroam/simroam/internal/catalog/domain"
	"github.com/simroam/simroam/internal/order/domain"
	"github.com/simroam/simroam/internal/ordernum"
	"github.com/simroam/simroam/internal/usercontext"
	"github.com/simroam/simroam/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Numbers     *ordernum.Generator
	Repo        domain.Repository
	CatalogRepo catalogdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	numbers     *ordernum.Generator
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		numbers:     p.Numbers,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
	}
}

// Create builds the order in a single transaction: order row, authoritative
// price lookup, items, recomputed total. No partial order is ever visible.
func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Order{}, domain.ErrInvalidUser
	}

	if len(req.Items) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return domain.Order{}, domain.ErrInvalidCurrency
	}

	lines, err := mergeCart(req.Items)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:        s.genID.Generate(),
		Number:    s.numbers.Next(),
		UserID:    userID,
		Currency:  currency,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}

		ids := make([]snowflake.ID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.packageID)
		}
		packages, err := s.catalogRepo.FindByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		priced := make(map[snowflake.ID]*catalogdomain.Package, len(packages))
		for _, pkg := range packages {
			priced[pkg.ID] = pkg
		}

		var total int64
		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			pkg, found := priced[line.packageID]
			if !found {
				return catalogdomain.ErrPackageNotFound
			}
			total += pkg.RetailAmount * int64(line.quantity)
			items = append(items, domain.OrderItem{
				ID:         s.genID.Generate(),
				OrderID:    order.ID,
				PackageID:  pkg.ID,
				Quantity:   line.quantity,
				UnitAmount: pkg.RetailAmount,
				StartDate:  line.startDate,
				CreatedAt:  now,
			})
		}

		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		if err := s.repo.UpdateTotal(ctx, tx, order.ID, total); err != nil {
			return err
		}
		order.TotalAmount = total
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("number", order.Number),
		zap.Int64("total_amount", order.TotalAmount),
	)
	return order, nil
}

type cartLine struct {
	packageID snowflake.ID
	quantity  int
	startDate *time.Time
}

// mergeCart de-duplicates repeated package ids by summing quantity, keeping
// the first requested start date.
func mergeCart(items []domain.CartItem) ([]cartLine, error) {
	index := make(map[snowflake.ID]int, len(items))
	lines := make([]cartLine, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		id, err := snowflake.ParseString(strings.TrimSpace(item.PackageID))
		if err != nil {
			return nil, catalogdomain.ErrPackageNotFound
		}
		if at, seen := index[id]; seen {
			lines[at].quantity += item.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, cartLine{
			packageID: id,
			quantity:  item.Quantity,
			startDate: item.StartDate,
		})
	}
	return lines, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetOrderRequest) (domain.OrderWithItems, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.OrderWithItems{}, domain.ErrInvalidUser
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.OrderWithItems{}, domain.ErrNotFound
	}

	order, err := s.repo.FindByIDForUser(ctx, s.db, userID, id)
	if err != nil {
		return domain.OrderWithItems{}, err
	}
	if order == nil {
		return domain.OrderWithItems{}, domain.ErrNotFound
	}

	items, err := s.repo.FindItems(ctx, s.db, order.ID)
	if err != nil {
		return domain.OrderWithItems{}, err
	}
	return domain.OrderWithItems{Order: *order, Items: items}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListOrdersRequest) (domain.ListOrdersResponse, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.ListOrdersResponse{}, domain.ErrInvalidUser
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByUser(ctx, s.db, userID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListOrdersResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(order *domain.Order) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        order.ID.String(),
			CreatedAt: order.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	orders := make([]domain.Order, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		orders = append(orders, *item)
	}

	resp := domain.ListOrdersResponse{Orders: orders}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
