package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/adapters/events"
	"github.com/atvirokodosprendimai/opsledger/internal/adapters/httpapi"
	sqliteadapter "github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
	"github.com/atvirokodosprendimai/opsledger/internal/core/usecase"
	"github.com/atvirokodosprendimai/opsledger/migrations"
)

type Config struct {
	Addr               string
	DBPath             string
	BootstrapAPIKey    string
	BootstrapUserEmail string
	BootstrapUserName  string
	WebhookURL         string
	WebhookSecret      string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit sqlite: %w", err)
	}

	// Capture hooks go on the writer before anything else touches it; the
	// audited executor refuses to run when they are absent.
	if err := sqliteadapter.RegisterChangeCapture(db.W); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("register change capture: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, migrateCancel := context.WithTimeout(ctx, 5*time.Second)
	defer migrateCancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	executor := sqliteadapter.NewAuditedExecutor(db)
	projectReader := sqliteadapter.NewProjectReader(db)
	productReader := sqliteadapter.NewProductReader(db)
	budgetReader := sqliteadapter.NewBudgetReader(db)
	quotationReader := sqliteadapter.NewQuotationReader(db)
	changeLogRepo := sqliteadapter.NewChangeLogRepository(db)
	userRepo := sqliteadapter.NewUserRepository(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	authService := usecase.NewAuthService(apiKeyRepo)
	catalogService := usecase.NewCatalogService(executor, projectReader, productReader)
	quotationService := usecase.NewQuotationService(executor, quotationReader)
	approvalService := usecase.NewApprovalService(executor)
	budgetService := usecase.NewBudgetService(budgetReader)
	changeLogService := usecase.NewChangeLogService(changeLogRepo, userRepo)

	var publisher ports.EventPublisher = events.NewLogPublisher()
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	}
	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, publisher, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	if cfg.BootstrapAPIKey != "" {
		if err := bootstrapIdentity(cfg, userRepo, apiKeyRepo); err != nil {
			_ = dispatcher.Close()
			_ = db.Close()
			return nil, nil, err
		}
	}

	handler := httpapi.NewHandler(authService, catalogService, quotationService, approvalService, budgetService, changeLogService)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

// bootstrapIdentity provisions the startup user and its API key so a fresh
// deployment has an attributable identity to call in with.
func bootstrapIdentity(cfg Config, users ports.UserRepository, keys ports.APIKeyRepository) error {
	name := cfg.BootstrapUserName
	if name == "" {
		name = "bootstrap"
	}
	email := cfg.BootstrapUserEmail
	if email == "" {
		email = "bootstrap@localhost"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := users.Upsert(ctx, domain.User{
		FirstName: name,
		Email:     email,
	})
	if err != nil {
		return fmt.Errorf("bootstrap user: %w", err)
	}

	err = keys.Upsert(ctx, domain.APIKey{
		TokenHash: usecase.HashToken(cfg.BootstrapAPIKey),
		UserID:    &user.ID,
		Name:      name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap api key: %w", err)
	}
	return nil
}
