package models

import "gorm.io/gorm"

type Resource struct {
	gorm.Model
	Title       string
	URL         string
	Description string
	Tags        string // comma-separated
	AuthorID    uint
	AuthorName  string
	Upvotes     int `gorm:"default:0"`
	Comments    []ResourceComment
}

type ResourceComment struct {
	gorm.Model
	ResourceID uint
	UserID     uint
	UserName   string
	Text       string
}

// ResourceVote enforces one upvote per user per resource
type ResourceVote struct {
	gorm.Model
	ResourceID uint `gorm:"uniqueIndex:idx_resource_votes_resource_user"`
	UserID     uint `gorm:"uniqueIndex:idx_resource_votes_resource_user"`
}
