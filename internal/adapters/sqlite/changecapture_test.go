package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
	"github.com/atvirokodosprendimai/opsledger/migrations"
	"github.com/shopspring/decimal"
)

func listEntries(t *testing.T, db *gormsqlite.DB, filter domain.ChangeLogFilter) ([]domain.ChangeLogEntry, int64) {
	t.Helper()
	if filter.Limit == 0 {
		filter.Limit = 100
	}
	entries, total, err := NewChangeLogRepository(db).List(context.Background(), filter)
	if err != nil {
		t.Fatalf("list change log: %v", err)
	}
	return entries, total
}

func TestAuditedCreateRecordsActorAndAfterImage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	exec := NewAuditedExecutor(db)

	var project domain.Project
	err := exec.RunAudited(ctx, domain.Actor(7), func(sess ports.Session) error {
		var err error
		project, err = sess.Projects().Create(domain.Project{Name: "Warehouse refit", Company: "Acme"})
		return err
	})
	if err != nil {
		t.Fatalf("run audited: %v", err)
	}
	if project.ID == 0 {
		t.Fatal("project id not assigned")
	}

	entries, total := listEntries(t, db, domain.ChangeLogFilter{TableName: "projects"})
	if total != 1 {
		t.Fatalf("expected 1 entry, got %d", total)
	}
	entry := entries[0]
	if entry.Action != domain.ActionCreate {
		t.Errorf("action = %s, want CREATE", entry.Action)
	}
	if entry.ActorID == nil || *entry.ActorID != 7 {
		t.Errorf("actor_id = %v, want 7", entry.ActorID)
	}
	if entry.Before != nil {
		t.Errorf("create entry should carry no before image, got %s", entry.Before)
	}
	if entry.EntryID == "" {
		t.Error("entry_id is empty")
	}

	var after map[string]any
	if err := json.Unmarshal(entry.After, &after); err != nil {
		t.Fatalf("decode after image: %v", err)
	}
	if after["name"] != "Warehouse refit" {
		t.Errorf("after image name = %v, want Warehouse refit", after["name"])
	}
}

func TestAuditedSystemActorRecordsNullActor(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	exec := NewAuditedExecutor(db)

	err := exec.RunAudited(ctx, domain.SystemActor(), func(sess ports.Session) error {
		_, err := sess.Projects().Create(domain.Project{Name: "Maintenance"})
		return err
	})
	if err != nil {
		t.Fatalf("run audited: %v", err)
	}

	entries, _ := listEntries(t, db, domain.ChangeLogFilter{TableName: "projects"})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ActorID != nil {
		t.Errorf("actor_id = %v, want nil for system actor", *entries[0].ActorID)
	}
}

func TestAuditedRollbackDiscardsDataAndLog(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	exec := NewAuditedExecutor(db)

	boom := errors.New("boom")
	err := exec.RunAudited(ctx, domain.Actor(1), func(sess ports.Session) error {
		if _, err := sess.Projects().Create(domain.Project{Name: "Doomed"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected closure error back, got %v", err)
	}

	projects, err := NewProjectReader(db).List(ctx, 10)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects after rollback, got %d", len(projects))
	}

	_, total := listEntries(t, db, domain.ChangeLogFilter{})
	if total != 0 {
		t.Errorf("expected empty change log after rollback, got %d entries", total)
	}
}

func TestBulkInsertCapturesEveryRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	exec := NewAuditedExecutor(db)

	err := exec.RunAudited(ctx, domain.Actor(4), func(sess ports.Session) error {
		project, err := sess.Projects().Create(domain.Project{Name: "Fit-out"})
		if err != nil {
			return err
		}
		err = sess.Budget().UpsertCategory(domain.BudgetCategory{
			ProjectID: project.ID,
			Name:      domain.ProcurementCategoryName,
			Budget:    decimal.NewFromInt(100),
		})
		if err != nil {
			return err
		}
		category, err := sess.Budget().FindCategory(project.ID, domain.ProcurementCategoryName)
		if err != nil {
			return err
		}

		lines := make([]domain.LedgerTransaction, 0, 3)
		for i := 0; i < 3; i++ {
			lines = append(lines, domain.LedgerTransaction{
				ProjectID:       project.ID,
				CategoryID:      category.ID,
				ItemDescription: "line",
				Cost:            decimal.NewFromInt(10),
				DatePurchased:   time.Now().UTC(),
				Status:          domain.TransactionStatusCompleted,
			})
		}
		_, err = sess.Budget().AppendTransactions(lines)
		return err
	})
	if err != nil {
		t.Fatalf("run audited: %v", err)
	}

	entries, total := listEntries(t, db, domain.ChangeLogFilter{TableName: "transactions"})
	if total != 3 {
		t.Fatalf("expected 3 transaction entries, got %d", total)
	}
	seen := map[string]bool{}
	for _, entry := range entries {
		if entry.Action != domain.ActionCreate {
			t.Errorf("action = %s, want CREATE", entry.Action)
		}
		if seen[entry.RecordID] {
			t.Errorf("duplicate record_id %s in bulk capture", entry.RecordID)
		}
		seen[entry.RecordID] = true
	}
}

func TestCategoryOverwriteCapturedAsUpdate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	exec := NewAuditedExecutor(db)

	var projectID int64
	err := exec.RunAudited(ctx, domain.Actor(2), func(sess ports.Session) error {
		project, err := sess.Projects().Create(domain.Project{Name: "Phase 1"})
		if err != nil {
			return err
		}
		projectID = project.ID
		return sess.Budget().UpsertCategory(domain.BudgetCategory{
			ProjectID: projectID,
			Name:      domain.ProcurementCategoryName,
			Budget:    decimal.RequireFromString("100.00"),
		})
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	err = exec.RunAudited(ctx, domain.Actor(2), func(sess ports.Session) error {
		return sess.Budget().UpsertCategory(domain.BudgetCategory{
			ProjectID: projectID,
			Name:      domain.ProcurementCategoryName,
			Budget:    decimal.RequireFromString("250.00"),
		})
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	entries, total := listEntries(t, db, domain.ChangeLogFilter{TableName: "budget_categories"})
	if total != 2 {
		t.Fatalf("expected 2 entries, got %d", total)
	}
	// Newest first.
	update, create := entries[0], entries[1]
	if create.Action != domain.ActionCreate {
		t.Errorf("first mutation logged as %s, want CREATE", create.Action)
	}
	if update.Action != domain.ActionUpdate {
		t.Errorf("second mutation logged as %s, want UPDATE", update.Action)
	}
	if update.RecordID != create.RecordID {
		t.Errorf("update record_id %s differs from create record_id %s", update.RecordID, create.RecordID)
	}
	if update.Before == nil || update.After == nil {
		t.Fatal("update entry must carry both images")
	}

	var before, after map[string]any
	if err := json.Unmarshal(update.Before, &before); err != nil {
		t.Fatalf("decode before image: %v", err)
	}
	if err := json.Unmarshal(update.After, &after); err != nil {
		t.Fatalf("decode after image: %v", err)
	}
	if before["budget"] != "100" {
		t.Errorf("before budget = %v, want 100", before["budget"])
	}
	if after["budget"] != "250" {
		t.Errorf("after budget = %v, want 250", after["budget"])
	}
}

func TestDeleteCapturesBeforeImage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	exec := NewAuditedExecutor(db)

	var project domain.Project
	err := exec.RunAudited(ctx, domain.Actor(3), func(sess ports.Session) error {
		var err error
		project, err = sess.Projects().Create(domain.Project{Name: "Short-lived"})
		return err
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}

	err = db.WriteTX(domain.WithActor(ctx, domain.Actor(3)), func(tx *gormsqlite.Tx) error {
		return tx.Delete(&projectModel{ID: project.ID}).Error
	})
	if err != nil {
		t.Fatalf("delete project: %v", err)
	}

	entries, _ := listEntries(t, db, domain.ChangeLogFilter{
		TableName: "projects",
		Action:    domain.ActionDelete,
	})
	if len(entries) != 1 {
		t.Fatalf("expected 1 delete entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.After != nil {
		t.Errorf("delete entry should carry no after image, got %s", entry.After)
	}
	var before map[string]any
	if err := json.Unmarshal(entry.Before, &before); err != nil {
		t.Fatalf("decode before image: %v", err)
	}
	if before["name"] != "Short-lived" {
		t.Errorf("before image name = %v, want Short-lived", before["name"])
	}
	if entry.ActorID == nil || *entry.ActorID != 3 {
		t.Errorf("actor_id = %v, want 3", entry.ActorID)
	}
}

func TestRunAuditedRefusesWithoutCapture(t *testing.T) {
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "bare.sqlite")
	db, err := gormsqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	exec := NewAuditedExecutor(db)
	err = exec.RunAudited(ctx, domain.Actor(1), func(sess ports.Session) error {
		_, err := sess.Projects().Create(domain.Project{Name: "Unaudited"})
		return err
	})
	if !errors.Is(err, domain.ErrAuditBinding) {
		t.Fatalf("expected ErrAuditBinding, got %v", err)
	}
}
