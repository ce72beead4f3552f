package model

import (
	"time"

	"gorm.io/datatypes"
)

// CombatLog is one combat event raised by an arena entity.
type CombatLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityID   string         `gorm:"index:idx_combat_entity;size:64;not null" json:"entity_id"`
	EntityName string         `gorm:"size:64" json:"entity_name"`
	Variant    string         `gorm:"size:32" json:"variant"`
	Kind       string         `gorm:"index:idx_combat_kind;size:32;not null" json:"kind"`
	Tick       uint64         `json:"tick"`
	Payload    datatypes.JSON `json:"payload"`
	CreatedAt  time.Time      `gorm:"index:idx_combat_created;autoCreateTime:milli" json:"created_at"`
}
