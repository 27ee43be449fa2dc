package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrPackageNotFound = errors.New("package_not_found")

// Package is a sellable eSIM package synced from a wholesale provider. The
// order service prices against RetailAmount; the fulfillment service reads
// the provider metadata when building provider orders.
type Package struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Provider     string       `gorm:"not null;uniqueIndex:ux_packages_provider_external,priority:1" json:"provider"`
	ExternalID   string       `gorm:"not null;uniqueIndex:ux_packages_provider_external,priority:2" json:"external_id"`
	Title        string       `gorm:"not null" json:"title"`
	Type         string       `gorm:"not null" json:"type"`
	Country      string       `json:"country,omitempty"`
	Operator     string       `json:"operator,omitempty"`
	DataAmountMB int64        `gorm:"column:data_amount_mb" json:"data_amount_mb"`
	VoiceMinutes int          `json:"voice_minutes"`
	TextMessages int          `json:"text_messages"`
	ValidityDays int          `json:"validity_days"`
	RetailAmount int64        `gorm:"not null" json:"retail_amount"`
	NetAmount    int64        `gorm:"not null" json:"net_amount"`
	Currency     string       `gorm:"not null" json:"currency"`
	Active       bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}
