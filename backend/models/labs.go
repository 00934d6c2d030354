package models

import "gorm.io/gorm"

type Lab struct {
	gorm.Model
	Title       string
	ShortDesc   string
	Description string
	Difficulty  string // beginner, intermediate, advanced
	Category    string // web, crypto, forensics, network, osint
	AuthorID    uint
	IconURL     string
	AccessLevel string `gorm:"default:public"` // public, private
	Points      int
	Steps       []LabStep
}

type LabStep struct {
	gorm.Model
	LabID         uint
	Title         string
	Instructions  string
	Hint          string
	Flag          string // expected flag; comparison happens in the client
	SequenceOrder int
}
