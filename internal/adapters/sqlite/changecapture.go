package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Change capture is implemented as GORM callbacks on the writer handle, the Go
// equivalent of row-level triggers. Every create, update and delete that flows
// through the handle appends one change_log row per mutated row, inside the
// same transaction. The acting user travels on the statement context, bound
// there by the audited executor, so no session-global state is involved.
//
// A capture failure is added to the statement error and rolls the whole
// transaction back: an un-audited mutation is worse than no mutation.

const (
	captureCreateName       = "opsledger:capture_create"
	captureBeforeUpdateName = "opsledger:capture_before_update"
	captureAfterUpdateName  = "opsledger:capture_after_update"
	captureBeforeDeleteName = "opsledger:capture_before_delete"
	captureAfterDeleteName  = "opsledger:capture_after_delete"

	beforeImageKey = "opsledger:before_image"
)

func RegisterChangeCapture(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register(captureCreateName, captureCreate); err != nil {
		return fmt.Errorf("register create capture: %w", err)
	}
	if err := db.Callback().Update().Before("gorm:update").Register(captureBeforeUpdateName, captureBeforeMutation); err != nil {
		return fmt.Errorf("register before-update capture: %w", err)
	}
	if err := db.Callback().Update().After("gorm:update").Register(captureAfterUpdateName, captureAfterUpdate); err != nil {
		return fmt.Errorf("register after-update capture: %w", err)
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register(captureBeforeDeleteName, captureBeforeMutation); err != nil {
		return fmt.Errorf("register before-delete capture: %w", err)
	}
	if err := db.Callback().Delete().After("gorm:delete").Register(captureAfterDeleteName, captureAfterDelete); err != nil {
		return fmt.Errorf("register after-delete capture: %w", err)
	}
	return nil
}

// ChangeCaptureInstalled reports whether the capture callbacks are registered
// on the handle. The audited executor refuses to run without them.
func ChangeCaptureInstalled(db *gorm.DB) bool {
	return db.Callback().Create().Get(captureCreateName) != nil
}

// Tables owned by the capture and delivery infrastructure itself; recording
// their writes would recurse or flood the log with non-business rows.
// API keys are provisioning state, not business data.
func exemptTable(table string) bool {
	switch table {
	case changeLogModel{}.TableName(), outboxEventModel{}.TableName(), apiKeyModel{}.TableName():
		return true
	}
	return false
}

func captureSkip(db *gorm.DB) bool {
	if db.Error != nil {
		return true
	}
	if db.Statement.Schema == nil || db.Statement.Table == "" {
		return true
	}
	return exemptTable(db.Statement.Table)
}

func captureCreate(db *gorm.DB) {
	if captureSkip(db) {
		return
	}

	for _, row := range statementRows(db) {
		recordID, ok := rowPrimaryKey(db, row)
		if !ok {
			db.AddError(fmt.Errorf("capture create on %s: row has no primary key: %w", db.Statement.Table, domain.ErrAuditBinding))
			return
		}
		after, err := rowImage(db, row)
		if err != nil {
			db.AddError(fmt.Errorf("capture create on %s: %w", db.Statement.Table, err))
			return
		}
		appendEntry(db, domain.ActionCreate, recordID, nil, after)
		if db.Error != nil {
			return
		}
	}
}

type stashedImage struct {
	recordID string
	image    json.RawMessage
	found    bool
}

// captureBeforeMutation loads the current row by primary key ahead of an
// update or delete so the entry can carry a before image. The statement must
// address a single row through its primary key; anything else cannot be
// attributed row-by-row and fails the transaction.
func captureBeforeMutation(db *gorm.DB) {
	if captureSkip(db) {
		return
	}

	recordID, pkValue, ok := statementPrimaryKey(db)
	if !ok {
		db.AddError(fmt.Errorf("capture on %s: statement does not address a row by primary key: %w", db.Statement.Table, domain.ErrAuditBinding))
		return
	}

	pkColumn := db.Statement.Schema.PrioritizedPrimaryField.DBName
	before := map[string]any{}
	err := db.Session(&gorm.Session{NewDB: true}).
		Table(db.Statement.Table).
		Where(pkColumn+" = ?", pkValue).
		Take(&before).Error

	stash := stashedImage{recordID: recordID}
	switch {
	case err == nil:
		raw, marshalErr := json.Marshal(before)
		if marshalErr != nil {
			db.AddError(fmt.Errorf("capture on %s: marshal before image: %w", db.Statement.Table, marshalErr))
			return
		}
		stash.image = raw
		stash.found = true
	case errors.Is(err, gorm.ErrRecordNotFound):
		// The statement will affect zero rows; the after callback skips it.
	default:
		db.AddError(fmt.Errorf("capture on %s: load before image: %w", db.Statement.Table, err))
		return
	}

	db.InstanceSet(beforeImageKey, stash)
}

func captureAfterUpdate(db *gorm.DB) {
	if captureSkip(db) {
		return
	}
	if db.Statement.RowsAffected == 0 {
		return
	}

	stash, ok := loadStash(db)
	if !ok {
		return
	}

	pkColumn := db.Statement.Schema.PrioritizedPrimaryField.DBName
	after := map[string]any{}
	err := db.Session(&gorm.Session{NewDB: true}).
		Table(db.Statement.Table).
		Where(pkColumn+" = ?", stash.recordID).
		Take(&after).Error
	if err != nil {
		db.AddError(fmt.Errorf("capture update on %s: load after image: %w", db.Statement.Table, err))
		return
	}
	afterRaw, err := json.Marshal(after)
	if err != nil {
		db.AddError(fmt.Errorf("capture update on %s: marshal after image: %w", db.Statement.Table, err))
		return
	}

	appendEntry(db, domain.ActionUpdate, stash.recordID, stash.image, afterRaw)
}

func captureAfterDelete(db *gorm.DB) {
	if captureSkip(db) {
		return
	}
	if db.Statement.RowsAffected == 0 {
		return
	}

	stash, ok := loadStash(db)
	if !ok {
		return
	}

	appendEntry(db, domain.ActionDelete, stash.recordID, stash.image, nil)
}

func loadStash(db *gorm.DB) (stashedImage, bool) {
	value, ok := db.InstanceGet(beforeImageKey)
	if !ok {
		db.AddError(fmt.Errorf("capture on %s: mutation without before image: %w", db.Statement.Table, domain.ErrAuditBinding))
		return stashedImage{}, false
	}
	stash, ok := value.(stashedImage)
	if !ok || !stash.found {
		db.AddError(fmt.Errorf("capture on %s: mutation affected rows the before hook did not see: %w", db.Statement.Table, domain.ErrAuditBinding))
		return stashedImage{}, false
	}
	return stash, true
}

func appendEntry(db *gorm.DB, action domain.ChangeAction, recordID string, before, after json.RawMessage) {
	var actorID *int64
	if actor, ok := domain.ActorFromContext(db.Statement.Context); ok {
		actorID = actor.ID
	}

	entry := changeLogModel{
		EntryID:    uuid.NewString(),
		EntityTable: db.Statement.Table,
		RecordID:   recordID,
		Action:     string(action),
		BeforeJSON: rawToPtr(before),
		AfterJSON:  rawToPtr(after),
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}

	if err := db.Session(&gorm.Session{NewDB: true}).Create(&entry).Error; err != nil {
		db.AddError(fmt.Errorf("record change for %s: %w", db.Statement.Table, err))
	}
}

func statementRows(db *gorm.DB) []reflect.Value {
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		rows := make([]reflect.Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			rows = append(rows, reflect.Indirect(rv.Index(i)))
		}
		return rows
	case reflect.Struct:
		return []reflect.Value{rv}
	}
	return nil
}

func rowPrimaryKey(db *gorm.DB, row reflect.Value) (string, bool) {
	field := db.Statement.Schema.PrioritizedPrimaryField
	if field == nil {
		return "", false
	}
	value, isZero := field.ValueOf(db.Statement.Context, row)
	if isZero {
		return "", false
	}
	return fmt.Sprint(value), true
}

// statementPrimaryKey resolves the primary key an update or delete statement
// addresses, from the model instance the store operates on.
func statementPrimaryKey(db *gorm.DB) (string, any, bool) {
	field := db.Statement.Schema.PrioritizedPrimaryField
	if field == nil {
		return "", nil, false
	}
	rv := db.Statement.ReflectValue
	if rv.Kind() != reflect.Struct {
		return "", nil, false
	}
	value, isZero := field.ValueOf(db.Statement.Context, rv)
	if isZero {
		return "", nil, false
	}
	return fmt.Sprint(value), value, true
}

// rowImage serializes a model instance into a column-keyed map, matching the
// shape of the before images loaded straight from the table.
func rowImage(db *gorm.DB, row reflect.Value) (json.RawMessage, error) {
	fields := db.Statement.Schema.Fields
	image := make(map[string]any, len(fields))
	for _, field := range fields {
		if field.DBName == "" {
			continue
		}
		value, _ := field.ValueOf(db.Statement.Context, row)
		image[field.DBName] = value
	}
	raw, err := json.Marshal(image)
	if err != nil {
		return nil, fmt.Errorf("marshal row image: %w", err)
	}
	return raw, nil
}

func rawToPtr(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}
