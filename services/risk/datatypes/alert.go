// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"time"
)

// AlertLevel is the escalation level of an alert.
type AlertLevel string

const (
	AlertWarning   AlertLevel = "warning"
	AlertCritical  AlertLevel = "critical"
	AlertEmergency AlertLevel = "emergency"
)

// Order returns the numeric order of an alert level.
func (l AlertLevel) Order() int {
	switch l {
	case AlertWarning:
		return 0
	case AlertCritical:
		return 1
	case AlertEmergency:
		return 2
	default:
		return 0
	}
}

// Escalated returns the next level up, or the same level if already
// at emergency.
func (l AlertLevel) Escalated() AlertLevel {
	switch l {
	case AlertWarning:
		return AlertCritical
	case AlertCritical:
		return AlertEmergency
	default:
		return l
	}
}

// AlertState is the lifecycle state of an alert.
//
// Valid transitions:
//
//	triggered → acknowledged → resolved
//
// Resolution without acknowledgment is rejected: every alert requires
// a human acknowledgment before it can be closed.
type AlertState string

const (
	AlertTriggered    AlertState = "triggered"
	AlertAcknowledged AlertState = "acknowledged"
	AlertResolved     AlertState = "resolved"
)

// ErrInvalidTransition is returned for disallowed alert state changes.
type ErrInvalidTransition struct {
	From AlertState
	To   AlertState
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid alert transition %s → %s", e.From, e.To)
}

// Alert is generated when a risk assessment or vulnerability crosses a
// threshold rule.
type Alert struct {
	ID             string     `json:"id"`
	AssetID        string     `json:"asset_id"`
	Level          AlertLevel `json:"level"`
	Rule           string     `json:"rule"`
	Message        string     `json:"message"`
	State          AlertState `json:"state"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`

	// EscalatedFrom records the original level when escalation timers
	// promoted this alert.
	EscalatedFrom AlertLevel `json:"escalated_from,omitempty"`
}

// Acknowledge transitions the alert to acknowledged. Idempotent for
// already-acknowledged alerts; resolved alerts cannot be re-opened.
func (a *Alert) Acknowledge(by string, at time.Time) error {
	switch a.State {
	case AlertTriggered:
		a.State = AlertAcknowledged
		a.AcknowledgedAt = &at
		a.AcknowledgedBy = by
		return nil
	case AlertAcknowledged:
		return nil
	default:
		return &ErrInvalidTransition{From: a.State, To: AlertAcknowledged}
	}
}

// Resolve transitions the alert to resolved. Requires a prior
// acknowledgment.
func (a *Alert) Resolve(by string, at time.Time) error {
	switch a.State {
	case AlertAcknowledged:
		a.State = AlertResolved
		a.ResolvedAt = &at
		a.ResolvedBy = by
		return nil
	case AlertResolved:
		return nil
	default:
		return &ErrInvalidTransition{From: a.State, To: AlertResolved}
	}
}
