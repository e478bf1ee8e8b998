package assignment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/verdemont/estates/backend/internal/directory"
	"github.com/verdemont/estates/backend/internal/inventory"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	prefix string
	next   int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:assignment_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&inventory.Block{}, &inventory.Lot{}, &Assignment{}, &directory.Homeowner{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	directoryService, err := directory.NewService(directory.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct directory service: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1756500000, 0).UTC() },
		IDProvider: &staticIDGenerator{prefix: "assignment"},
		Directory:  directoryService,
	})
	if err != nil {
		t.Fatalf("failed to construct assignment service: %v", err)
	}

	return service, db
}

func seedBlockAndLot(t *testing.T, db *gorm.DB) inventory.Lot {
	t.Helper()

	block := inventory.Block{BlockID: "block-3", BlockNumber: 3, MaxLots: 10}
	if err := db.Create(&block).Error; err != nil {
		t.Fatalf("failed to seed block: %v", err)
	}
	lot := inventory.Lot{
		LotID:       "lot-1",
		BlockID:     block.BlockID,
		LotNumber:   1,
		HouseNumber: 301,
		Status:      inventory.LotStatusVacant,
		HouseModel:  "Kate",
	}
	if err := db.Create(&lot).Error; err != nil {
		t.Fatalf("failed to seed lot: %v", err)
	}
	return lot
}

func seedHomeowner(t *testing.T, db *gorm.DB, id, first, last string) directory.Homeowner {
	t.Helper()

	homeowner := directory.Homeowner{
		HomeownerID: id,
		FirstName:   first,
		LastName:    last,
		Username:    id,
		Role:        "homeowner",
	}
	if err := db.Create(&homeowner).Error; err != nil {
		t.Fatalf("failed to seed homeowner: %v", err)
	}
	return homeowner
}

func TestAssignBindsLotAndFilesRecord(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)
	seedHomeowner(t, db, "owner-a", "Alma", "Reyes")

	updated, err := service.Assign(context.Background(), lot.LotID, Request{
		HomeownerID: "owner-a",
		HouseModel:  "Marguerite",
	})
	if err != nil {
		t.Fatalf("unexpected assign error: %v", err)
	}
	if updated.Status != inventory.LotStatusOccupied {
		t.Fatalf("expected occupied, got %s", updated.Status)
	}
	if updated.OwnerID != "owner-a" || updated.OwnerName != "Alma Reyes" {
		t.Fatalf("unexpected owner fields: %q %q", updated.OwnerID, updated.OwnerName)
	}
	if updated.HouseModel != "Marguerite" {
		t.Fatalf("expected house model override, got %s", updated.HouseModel)
	}

	var record Assignment
	if err := db.Take(&record).Error; err != nil {
		t.Fatalf("failed to load assignment record: %v", err)
	}
	if record.HomeownerID != "owner-a" || record.LotID != lot.LotID {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.BlockNumber != 3 || record.LotNumber != 1 || record.HouseNumber != 301 {
		t.Fatalf("unexpected denormalized fields: %+v", record)
	}
	if record.Status != StatusActive {
		t.Fatalf("expected active status, got %s", record.Status)
	}
	if !record.AssignedAt.Equal(time.Unix(1756500000, 0).UTC()) {
		t.Fatalf("expected clock timestamp, got %v", record.AssignedAt)
	}
}

func TestAssignRejectsDuplicateForSameHomeowner(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)
	seedHomeowner(t, db, "owner-a", "Alma", "Reyes")

	if _, err := service.Assign(context.Background(), lot.LotID, Request{HomeownerID: "owner-a"}); err != nil {
		t.Fatalf("unexpected first assign error: %v", err)
	}

	_, err := service.Assign(context.Background(), lot.LotID, Request{HomeownerID: "owner-a"})
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}

	var records int64
	if err := db.Model(&Assignment{}).Count(&records).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if records != 1 {
		t.Fatalf("expected single assignment record, got %d", records)
	}
}

func TestAssignUnknownHomeownerLeavesLotUntouched(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)

	_, err := service.Assign(context.Background(), lot.LotID, Request{HomeownerID: "ghost"})
	if !errors.Is(err, directory.ErrHomeownerNotFound) {
		t.Fatalf("expected ErrHomeownerNotFound, got %v", err)
	}

	var stored inventory.Lot
	if err := db.Where("lot_id = ?", lot.LotID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load lot: %v", err)
	}
	if stored.Status != inventory.LotStatusVacant || stored.OwnerID != "" {
		t.Fatalf("lot should be unchanged, got %+v", stored)
	}

	var records int64
	if err := db.Model(&Assignment{}).Count(&records).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if records != 0 {
		t.Fatalf("expected no assignment records, got %d", records)
	}
}

func TestAssignWithoutHomeownerUpdatesStatusAndModelOnly(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)

	updated, err := service.Assign(context.Background(), lot.LotID, Request{
		Status:     inventory.LotStatusForSale,
		HouseModel: "Olivia",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != inventory.LotStatusForSale || updated.HouseModel != "Olivia" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if updated.OwnerID != "" || updated.OwnerName != "" {
		t.Fatalf("owner fields must not change on a degraded update")
	}

	_, err = service.Assign(context.Background(), lot.LotID, Request{Status: "Condemned"})
	if !errors.Is(err, inventory.ErrInvalidLotStatus) {
		t.Fatalf("expected ErrInvalidLotStatus, got %v", err)
	}

	var records int64
	if err := db.Model(&Assignment{}).Count(&records).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if records != 0 {
		t.Fatalf("degraded update must not file assignment records")
	}
}

func TestUnassignRevertsLotAndDeletesRecord(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)
	seedHomeowner(t, db, "owner-a", "Alma", "Reyes")

	if _, err := service.Assign(context.Background(), lot.LotID, Request{HomeownerID: "owner-a"}); err != nil {
		t.Fatalf("unexpected assign error: %v", err)
	}

	reverted, err := service.Unassign(context.Background(), lot.LotID)
	if err != nil {
		t.Fatalf("unexpected unassign error: %v", err)
	}
	if reverted.Status != inventory.LotStatusVacant || reverted.OwnerID != "" || reverted.OwnerName != "" {
		t.Fatalf("expected vacant lot with cleared owner, got %+v", reverted)
	}
	if reverted.HouseModel != "Kate" {
		t.Fatalf("house model should survive unassign, got %s", reverted.HouseModel)
	}

	var records int64
	if err := db.Model(&Assignment{}).Where("homeowner_id = ?", "owner-a").Count(&records).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if records != 0 {
		t.Fatalf("expected assignment record removed, got %d", records)
	}
}

func TestUnassignRejectsVacantLot(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)

	_, err := service.Unassign(context.Background(), lot.LotID)
	if !errors.Is(err, ErrLotNotOccupied) {
		t.Fatalf("expected ErrLotNotOccupied, got %v", err)
	}
}

func TestUnassignSelfHealsMissingRecord(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)

	// Occupied lot with no backing record, as left by out-of-band edits.
	drift := map[string]interface{}{
		"status":     inventory.LotStatusOccupied,
		"owner_id":   "owner-a",
		"owner_name": "Alma Reyes",
	}
	if err := db.Model(&inventory.Lot{}).Where("lot_id = ?", lot.LotID).Updates(drift).Error; err != nil {
		t.Fatalf("failed to seed drift: %v", err)
	}

	reverted, err := service.Unassign(context.Background(), lot.LotID)
	if err != nil {
		t.Fatalf("self-healing unassign must not error: %v", err)
	}
	if reverted.Status != inventory.LotStatusVacant || reverted.OwnerID != "" {
		t.Fatalf("expected reverted lot, got %+v", reverted)
	}
}

func TestUnassignUnknownLot(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Unassign(context.Background(), "missing")
	if !errors.Is(err, ErrLotNotFound) {
		t.Fatalf("expected ErrLotNotFound, got %v", err)
	}
}

func TestReconcileRepairsBothOrphanShapes(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)
	seedHomeowner(t, db, "owner-a", "Alma", "Reyes")
	seedHomeowner(t, db, "owner-b", "Ben", "Cruz")

	// Healthy pairing that must survive reconciliation.
	if _, err := service.Assign(context.Background(), lot.LotID, Request{HomeownerID: "owner-a"}); err != nil {
		t.Fatalf("unexpected assign error: %v", err)
	}

	// Orphaned record: points at a lot owned by someone else.
	orphanRecord := Assignment{
		AssignmentID: "stale-record",
		HomeownerID:  "owner-b",
		LotID:        lot.LotID,
		BlockID:      lot.BlockID,
		BlockNumber:  3,
		LotNumber:    1,
		HouseNumber:  301,
		HouseModel:   "Kate",
		AssignedAt:   time.Unix(1756400000, 0).UTC(),
		Status:       StatusActive,
	}
	if err := db.Create(&orphanRecord).Error; err != nil {
		t.Fatalf("failed to seed orphan record: %v", err)
	}

	// Orphaned lot: Occupied with no record at all.
	orphanLot := inventory.Lot{
		LotID:       "lot-2",
		BlockID:     lot.BlockID,
		LotNumber:   2,
		HouseNumber: 302,
		Status:      inventory.LotStatusOccupied,
		OwnerID:     "owner-b",
		OwnerName:   "Ben Cruz",
		HouseModel:  "Kate",
	}
	if err := db.Create(&orphanLot).Error; err != nil {
		t.Fatalf("failed to seed orphan lot: %v", err)
	}

	report, err := service.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected reconcile error: %v", err)
	}
	if report.OrphanedRecordsRemoved != 1 {
		t.Fatalf("expected 1 orphaned record removed, got %d", report.OrphanedRecordsRemoved)
	}
	if report.OrphanedLotsReverted != 1 {
		t.Fatalf("expected 1 orphaned lot reverted, got %d", report.OrphanedLotsReverted)
	}

	var healthy int64
	if err := db.Model(&Assignment{}).Where("homeowner_id = ?", "owner-a").Count(&healthy).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if healthy != 1 {
		t.Fatalf("healthy pairing must survive, got %d records", healthy)
	}

	var repaired inventory.Lot
	if err := db.Where("lot_id = ?", "lot-2").Take(&repaired).Error; err != nil {
		t.Fatalf("failed to load repaired lot: %v", err)
	}
	if repaired.Status != inventory.LotStatusVacant || repaired.OwnerID != "" {
		t.Fatalf("expected repaired lot vacant, got %+v", repaired)
	}
}

func TestListForHomeownerReturnsRecords(t *testing.T) {
	service, db := newTestService(t)
	lot := seedBlockAndLot(t, db)
	seedHomeowner(t, db, "owner-a", "Alma", "Reyes")

	if _, err := service.Assign(context.Background(), lot.LotID, Request{HomeownerID: "owner-a"}); err != nil {
		t.Fatalf("unexpected assign error: %v", err)
	}

	records, err := service.ListForHomeowner(context.Background(), "owner-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].LotID != lot.LotID {
		t.Fatalf("unexpected records: %+v", records)
	}
}
