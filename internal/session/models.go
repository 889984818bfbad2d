// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session persists the discovered conversation index and the
// turns executed through this server.
package session

import "time"

// ProjectModel is the GORM model for the projects table.
type ProjectModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null;default:''"`
	Path         string `gorm:"default:''"`
	Provider     string `gorm:"not null;index:idx_project_provider"`
	EncodedName  string `gorm:"default:''"`
	SessionCount int    `gorm:"not null;default:0"`
	LastModified time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM
func (ProjectModel) TableName() string { return "projects" }

// SessionModel is the GORM model for the sessions table.
type SessionModel struct {
	ID           string `gorm:"primaryKey"`
	ProjectID    string `gorm:"not null;index:idx_session_project"`
	Provider     string `gorm:"not null"`
	FilePath     string `gorm:"default:''"`
	Preview      string `gorm:"default:''"`
	MessageCount int    `gorm:"not null;default:0"`
	StartTime    time.Time
	LastTime     time.Time  `gorm:"index:idx_session_last_time"`
	IsArchived   bool       `gorm:"not null;default:false;index:idx_session_archived"`
	ArchivedAt   *time.Time `gorm:"default:null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM
func (SessionModel) TableName() string { return "sessions" }

// TurnModel is the GORM model for turns executed through this server.
type TurnModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID string    `gorm:"not null;index:idx_turn_request" json:"request_id"`
	SessionID string    `gorm:"index:idx_turn_session" json:"session_id"`
	ProjectID string    `gorm:"default:''" json:"project_id"`
	Provider  string    `gorm:"not null" json:"provider"`
	Role      string    `gorm:"not null" json:"role"`
	Content   string    `gorm:"not null;default:''" json:"content"`
	Status    string    `gorm:"not null;default:''" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (TurnModel) TableName() string { return "turns" }
