package sqlite

import (
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Monetary columns are declared TEXT and carried as shopspring decimals so
// arithmetic stays exact end to end; SQLite would otherwise coerce NUMERIC
// affinity values into floats.

type userModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	FirstName string    `gorm:"column:first_name;not null"`
	LastName  string    `gorm:"column:last_name;not null"`
	Email     string    `gorm:"column:email;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (userModel) TableName() string { return "users" }

type apiKeyModel struct {
	TokenHash string    `gorm:"column:token_hash;primaryKey"`
	UserID    *int64    `gorm:"column:user_id"`
	Name      string    `gorm:"column:name;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (apiKeyModel) TableName() string { return "api_keys" }

type projectModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	Company   string    `gorm:"column:company;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (projectModel) TableName() string { return "projects" }

type productModel struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string          `gorm:"column:name;not null"`
	UnitOfMeasure string          `gorm:"column:unit_of_measure;not null"`
	InternalPrice decimal.Decimal `gorm:"column:internal_price;type:text;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null"`
}

func (productModel) TableName() string { return "products" }

type budgetCategoryModel struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID int64           `gorm:"column:project_id;not null"`
	Name      string          `gorm:"column:name;not null"`
	Budget    decimal.Decimal `gorm:"column:budget;type:text;not null"`
	Color     string          `gorm:"column:color;not null"`
	Type      string          `gorm:"column:type;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null"`
}

func (budgetCategoryModel) TableName() string { return "budget_categories" }

type transactionModel struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID       int64           `gorm:"column:project_id;not null"`
	CategoryID      int64           `gorm:"column:category_id;not null"`
	ItemDescription string          `gorm:"column:item_description;not null"`
	Cost            decimal.Decimal `gorm:"column:cost;type:text;not null"`
	DatePurchased   time.Time       `gorm:"column:date_purchased;not null"`
	Status          string          `gorm:"column:status;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;not null"`
}

func (transactionModel) TableName() string { return "transactions" }

type quotationModel struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID  int64           `gorm:"column:project_id;not null"`
	Supplier   string          `gorm:"column:supplier;not null"`
	TotalCost  decimal.Decimal `gorm:"column:total_cost;type:text;not null"`
	Status     string          `gorm:"column:status;not null"`
	ApprovedAt *time.Time      `gorm:"column:approved_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;not null"`
}

func (quotationModel) TableName() string { return "quotations" }

type quotationItemModel struct {
	ID          int64               `gorm:"column:id;primaryKey;autoIncrement"`
	QuotationID int64               `gorm:"column:quotation_id;not null"`
	ProductID   int64               `gorm:"column:product_id;not null"`
	Quantity    decimal.NullDecimal `gorm:"column:quantity;type:text"`
	CreatedAt   time.Time           `gorm:"column:created_at;not null"`
}

func (quotationItemModel) TableName() string { return "quotation_items" }

type changeLogModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID     string    `gorm:"column:entry_id;not null"`
	EntityTable string    `gorm:"column:table_name;not null"`
	RecordID    string    `gorm:"column:record_id;not null"`
	Action      string    `gorm:"column:action;not null"`
	BeforeJSON  *string   `gorm:"column:before_json"`
	AfterJSON   *string   `gorm:"column:after_json"`
	ActorID     *int64    `gorm:"column:actor_id"`
	OccurredAt  time.Time `gorm:"column:occurred_at;not null"`
}

func (changeLogModel) TableName() string { return "change_log" }

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string { return "outbox_events" }

func (m projectModel) toDomain() domain.Project {
	return domain.Project{
		ID:        m.ID,
		Name:      m.Name,
		Company:   m.Company,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m productModel) toDomain() domain.Product {
	return domain.Product{
		ID:            m.ID,
		Name:          m.Name,
		UnitOfMeasure: m.UnitOfMeasure,
		InternalPrice: m.InternalPrice,
		CreatedAt:     m.CreatedAt,
	}
}

func (m budgetCategoryModel) toDomain() domain.BudgetCategory {
	return domain.BudgetCategory{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Name:      m.Name,
		Budget:    m.Budget,
		Color:     m.Color,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m transactionModel) toDomain() domain.LedgerTransaction {
	return domain.LedgerTransaction{
		ID:              m.ID,
		ProjectID:       m.ProjectID,
		CategoryID:      m.CategoryID,
		ItemDescription: m.ItemDescription,
		Cost:            m.Cost,
		DatePurchased:   m.DatePurchased,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
	}
}

func (m quotationModel) toDomain() domain.Quotation {
	return domain.Quotation{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		Supplier:   m.Supplier,
		TotalCost:  m.TotalCost,
		Status:     m.Status,
		ApprovedAt: m.ApprovedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (m quotationItemModel) toDomain(product productModel) domain.QuotationItem {
	item := domain.QuotationItem{
		ID:          m.ID,
		QuotationID: m.QuotationID,
		ProductID:   m.ProductID,
		Product:     product.toDomain(),
	}
	if m.Quantity.Valid {
		qty := m.Quantity.Decimal
		item.Quantity = &qty
	}
	return item
}

func (m changeLogModel) toDomain() domain.ChangeLogEntry {
	entry := domain.ChangeLogEntry{
		ID:         m.ID,
		EntryID:    m.EntryID,
		TableName:  m.EntityTable,
		RecordID:   m.RecordID,
		Action:     domain.ChangeAction(m.Action),
		ActorID:    m.ActorID,
		OccurredAt: m.OccurredAt,
	}
	if m.BeforeJSON != nil {
		entry.Before = []byte(*m.BeforeJSON)
	}
	if m.AfterJSON != nil {
		entry.After = []byte(*m.AfterJSON)
	}
	return entry
}
