package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := "file:dbclient_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return &Client{conn: conn}
}

type txRow struct {
	ID   int `gorm:"primaryKey"`
	Name string
}

func TestWithTxCommits(t *testing.T) {
	client := newTestClient(t)
	if err := client.DB().AutoMigrate(&txRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&txRow{Name: "ok"}).Error
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}

	var count int64
	if err := client.DB().Model(&txRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 committed row, got %d", count)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client := newTestClient(t)
	if err := client.DB().AutoMigrate(&txRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	boom := errors.New("boom")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&txRow{Name: "doomed"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}

	var count int64
	if err := client.DB().Model(&txRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}

func TestWithTxPropagatesBeginContext(t *testing.T) {
	client := newTestClient(t)
	if err := client.DB().AutoMigrate(&txRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTx(ctx, client.DB(), func(tx *gorm.DB) error {
		return tx.Create(&txRow{Name: "late"}).Error
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}

	var count int64
	if err := client.DB().Model(&txRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("cancelled transaction must not commit, found %d rows", count)
	}
}
