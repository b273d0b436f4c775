package models

import "time"

// AgentName identifies one of the advisory agents
type AgentName string

const (
	AgentFocus          AgentName = "focus"
	AgentPlanning       AgentName = "planning"
	AgentInterruptGuard AgentName = "interrupt-guard"
)

// Priority is the urgency attached to a recommendation
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Recommendation types
const (
	RecommendationBreak    = "break"
	RecommendationDefer    = "defer"
	RecommendationReorder  = "reorder"
	RecommendationAccept   = "accept"
	RecommendationDelegate = "delegate"
)

// AgentRecommendation is an append-only advisory event. Only Dismissed is ever updated.
type AgentRecommendation struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Agent                AgentName `json:"agent"`
	Type                 string    `json:"type"`
	Message              string    `json:"message"`
	Priority             Priority  `json:"priority"`
	EstimatedCostMinutes *int      `json:"estimated_cost_minutes,omitempty"`
	SuggestedActions     []string  `json:"suggested_actions"`
	Dismissed            bool      `json:"dismissed"`
	CreatedAt            time.Time `json:"created_at"`
}

// BriefingSections are the four named blocks of a context-reload briefing
type BriefingSections struct {
	WhatChanged    string `json:"what_changed"`
	KeyDecisions   string `json:"key_decisions"`
	CurrentStatus  string `json:"current_status"`
	NeedsAttention string `json:"needs_attention"`
}

// AIBriefing is a generated, immutable context-reload summary for one task
type AIBriefing struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	TaskID      string           `json:"task_id"`
	TaskType    TaskType         `json:"task_type"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	Sections    BriefingSections `json:"sections"`
	GeneratedAt time.Time        `json:"generated_at"`
}
