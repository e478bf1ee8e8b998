package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
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

type staticCatalog struct {
	models map[string]struct{}
}

func (c *staticCatalog) ModelExists(_ context.Context, name string) (bool, error) {
	_, ok := c.models[name]
	return ok, nil
}

func newTestService(t *testing.T, models ...string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:inventory_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Block{}, &Lot{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	catalog := &staticCatalog{models: make(map[string]struct{})}
	for _, model := range models {
		catalog.models[model] = struct{}{}
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1756500000, 0).UTC() },
		IDProvider: &staticIDGenerator{prefix: "doc"},
		Catalog:    catalog,
	})
	if err != nil {
		t.Fatalf("failed to construct inventory service: %v", err)
	}

	return service, db
}

func mustAddBlock(t *testing.T, service *Service, blockNumber, maxLots int) Block {
	t.Helper()
	block, err := service.AddBlock(context.Background(), blockNumber, maxLots)
	if err != nil {
		t.Fatalf("unexpected add block error: %v", err)
	}
	return block
}

func requireErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}
