package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemType distinguishes research papers from industry news
type ItemType string

// known item types
const (
	TypePaper ItemType = "paper"
	TypeNews  ItemType = "news"
)

// Section is the digest section an item is filed under
type Section string

// known sections
const (
	SectionAIForScience Section = "ai_for_science"
	SectionAITheoryArch Section = "ai_theory_arch"
	SectionAIEducation  Section = "ai_education"
	SectionProductTech  Section = "product_tech"
	SectionMarketPolicy Section = "market_policy"
)

// Sections returns all sections in presentation order
func Sections() []Section {
	return []Section{
		SectionAIForScience,
		SectionAITheoryArch,
		SectionAIEducation,
		SectionProductTech,
		SectionMarketPolicy,
	}
}

// TimestampPrecision describes how precise the published timestamp is
type TimestampPrecision string

// timestamp precision values
const (
	PrecisionExact    TimestampPrecision = "exact"
	PrecisionDateOnly TimestampPrecision = "date_only"
)

// TimestampConfidence describes how much we trust the published timestamp
type TimestampConfidence string

// timestamp confidence values
const (
	ConfidenceHigh TimestampConfidence = "high"
	ConfidenceLow  TimestampConfidence = "low"
)

// recognized source reliability labels
const (
	ReliabilityHigh   = "High"
	ReliabilityMedium = "Medium"
	ReliabilityLow    = "Low"
)

// RawItem is the common shape produced by source adapters. It is ephemeral
// and treated as immutable once produced; it carries everything the
// normalizer needs to build a canonical Item.
type RawItem struct {
	ItemType            ItemType
	Source              string
	SourceURL           string
	CanonicalURL        string
	ExternalID          string
	Title               string
	PublishedAt         time.Time // always UTC
	SummaryText         string
	ContentText         string
	Tags                []string
	SourceReliability   string
	TimestampPrecision  TimestampPrecision
	TimestampConfidence TimestampConfidence
}

// Item is the canonical persisted record. Identity is derived
// deterministically from the dedup key, so the same logical item always maps
// to the same ID across runs and process restarts.
type Item struct {
	ID                  uuid.UUID
	ItemType            ItemType
	Section             Section
	Title               string
	Source              string
	SourceURL           string
	CanonicalURL        string
	ExternalID          string
	PublishedAt         time.Time
	EditionDateLocal    string // YYYY-MM-DD in the edition timezone
	EditionTimezone     string
	Tags                []string
	Difficulty          string
	SummaryBullets      []string
	WhyItMatters        string
	MarketImpact        string
	SourceReliability   string
	TimestampPrecision  TimestampPrecision
	TimestampConfidence TimestampConfidence
	RankScore           float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
