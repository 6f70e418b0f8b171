package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"time-tracker/internal/events"
)

// Publisher receives change notifications.
type Publisher interface {
	Publish(events.Change)
}

type userKey struct{}

// withUser tags ctx with the user a write belongs to so the change feed can
// address the notification.
func withUser(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func userFrom(ctx context.Context) uint {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(userKey{}).(uint)
	return id
}

var watchedTables = map[string]events.Topic{
	"categories":       events.Categories,
	"records":          events.Records,
	"user_preferences": events.Preferences,
}

// WatchChanges registers gorm callbacks that publish one notification per
// successful statement that touched a watched table.
func WatchChanges(db *gorm.DB, pub Publisher) error {
	notify := func(op events.Op) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			if tx.Error != nil || tx.RowsAffected == 0 {
				return
			}
			topic, ok := watchedTables[tx.Statement.Table]
			if !ok {
				return
			}
			pub.Publish(events.Change{Topic: topic, Op: op, UserID: userFrom(tx.Statement.Context)})
		}
	}

	cb := db.Callback()
	if err := cb.Create().After("gorm:create").Register("tracker:notify_create", notify(events.OpInsert)); err != nil {
		return fmt.Errorf("register create callback: %w", err)
	}
	if err := cb.Update().After("gorm:update").Register("tracker:notify_update", notify(events.OpUpdate)); err != nil {
		return fmt.Errorf("register update callback: %w", err)
	}
	if err := cb.Delete().After("gorm:delete").Register("tracker:notify_delete", notify(events.OpDelete)); err != nil {
		return fmt.Errorf("register delete callback: %w", err)
	}
	return nil
}
