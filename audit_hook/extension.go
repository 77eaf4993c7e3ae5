// Package audithook bridges Presale lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/lifecycle"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/position"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                   = (*Extension)(nil)
	_ plugin.OnInvested               = (*Extension)(nil)
	_ plugin.OnRefunded               = (*Extension)(nil)
	_ plugin.OnExcessWithdrawn        = (*Extension)(nil)
	_ plugin.OnCancelWithdrawn        = (*Extension)(nil)
	_ plugin.OnSaleEnded              = (*Extension)(nil)
	_ plugin.OnSaleCanceled           = (*Extension)(nil)
	_ plugin.OnTermsPublished         = (*Extension)(nil)
	_ plugin.OnTokensSupplied         = (*Extension)(nil)
	_ plugin.OnCapitalRaisedPublished = (*Extension)(nil)
	_ plugin.OnCapitalWithdrawn       = (*Extension)(nil)
	_ plugin.OnSettled                = (*Extension)(nil)
	_ plugin.OnTokensReleased         = (*Extension)(nil)
	_ plugin.OnEmergencyWithdraw      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly; callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	EventID    id.EventID     `json:"event_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Presale lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Capital ledger hooks
// ──────────────────────────────────────────────────

// OnInvested implements plugin.OnInvested.
func (e *Extension) OnInvested(ctx context.Context, pos interface{}) error {
	id, kv := positionMeta(pos, "event", "invested")
	return e.record(ctx, ActionInvested, SeverityInfo, OutcomeSuccess,
		ResourcePosition, id, CategoryCapital, nil, kv...)
}

// OnRefunded implements plugin.OnRefunded.
func (e *Extension) OnRefunded(ctx context.Context, pos interface{}) error {
	id, kv := positionMeta(pos, "event", "refunded")
	return e.record(ctx, ActionRefunded, SeverityInfo, OutcomeSuccess,
		ResourcePosition, id, CategoryCapital, nil, kv...)
}

// OnExcessWithdrawn implements plugin.OnExcessWithdrawn.
func (e *Extension) OnExcessWithdrawn(ctx context.Context, pos interface{}) error {
	id, kv := positionMeta(pos, "event", "excess_withdrawn")
	return e.record(ctx, ActionExcessWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourcePosition, id, CategoryCapital, nil, kv...)
}

// OnCancelWithdrawn implements plugin.OnCancelWithdrawn.
func (e *Extension) OnCancelWithdrawn(ctx context.Context, pos interface{}) error {
	id, kv := positionMeta(pos, "event", "cancel_withdrawn")
	return e.record(ctx, ActionCancelWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourcePosition, id, CategoryCapital, nil, kv...)
}

// ──────────────────────────────────────────────────
// Phase hooks
// ──────────────────────────────────────────────────

// OnSaleEnded implements plugin.OnSaleEnded.
func (e *Extension) OnSaleEnded(ctx context.Context, status interface{}) error {
	return e.record(ctx, ActionSaleEnded, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryLifecycle, nil, statusMeta(status, "event", "sale_ended")...)
}

// OnSaleCanceled implements plugin.OnSaleCanceled.
func (e *Extension) OnSaleCanceled(ctx context.Context, status interface{}) error {
	return e.record(ctx, ActionSaleCanceled, SeverityWarning, OutcomeSuccess,
		ResourceSale, "", CategoryLifecycle, nil, statusMeta(status, "event", "sale_canceled")...)
}

// OnTermsPublished implements plugin.OnTermsPublished.
func (e *Extension) OnTermsPublished(ctx context.Context, status interface{}) error {
	return e.record(ctx, ActionTermsPublished, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryLifecycle, nil, statusMeta(status, "event", "terms_published")...)
}

// OnTokensSupplied implements plugin.OnTokensSupplied.
func (e *Extension) OnTokensSupplied(ctx context.Context, status interface{}) error {
	return e.record(ctx, ActionTokensSupplied, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryLifecycle, nil, statusMeta(status, "event", "tokens_supplied")...)
}

// OnCapitalRaisedPublished implements plugin.OnCapitalRaisedPublished.
func (e *Extension) OnCapitalRaisedPublished(ctx context.Context, status interface{}) error {
	return e.record(ctx, ActionCapitalRaisedPublished, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryLifecycle, nil, statusMeta(status, "event", "capital_raised_published")...)
}

// OnCapitalWithdrawn implements plugin.OnCapitalWithdrawn.
func (e *Extension) OnCapitalWithdrawn(ctx context.Context, status interface{}) error {
	return e.record(ctx, ActionCapitalWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryLifecycle, nil, statusMeta(status, "event", "capital_withdrawn")...)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettled implements plugin.OnSettled.
func (e *Extension) OnSettled(ctx context.Context, pos interface{}) error {
	id, kv := positionMeta(pos, "event", "settled")
	return e.record(ctx, ActionSettled, SeverityInfo, OutcomeSuccess,
		ResourceSettlement, id, CategorySettlement, nil, kv...)
}

// OnTokensReleased implements plugin.OnTokensReleased.
func (e *Extension) OnTokensReleased(ctx context.Context, pos interface{}) error {
	id, kv := positionMeta(pos, "event", "tokens_released")
	return e.record(ctx, ActionTokensReleased, SeverityInfo, OutcomeSuccess,
		ResourceSettlement, id, CategorySettlement, nil, kv...)
}

// OnEmergencyWithdraw implements plugin.OnEmergencyWithdraw.
func (e *Extension) OnEmergencyWithdraw(ctx context.Context, receiver, asset, amount string) error {
	return e.record(ctx, ActionEmergencyWithdraw, SeverityCritical, OutcomeSuccess,
		ResourceTreasury, "", CategoryOperator, nil,
		"receiver", receiver,
		"asset", asset,
		"amount", amount,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// positionMeta extracts the resource ID and metadata pairs from a hook
// payload that carries a position.
func positionMeta(v interface{}, kvPairs ...any) (string, []any) {
	p, ok := v.(*position.Position)
	if !ok {
		return "", kvPairs
	}
	kvPairs = append(kvPairs,
		"sale_id", p.SaleID.String(),
		"account", p.Account.String(),
		"invested_capital", p.InvestedCapital.String(),
		"settled", p.Settled,
		"refunded", p.Refunded,
	)
	return p.ID.String(), kvPairs
}

// statusMeta extracts metadata pairs from a hook payload that carries a
// sale status snapshot.
func statusMeta(v interface{}, kvPairs ...any) []any {
	s, ok := v.(*lifecycle.Status)
	if !ok {
		return kvPairs
	}
	return append(kvPairs,
		"total_capital_invested", s.TotalCapitalInvested.String(),
		"total_capital_raised", s.TotalCapitalRaised.String(),
		"total_capital_withdrawn", s.TotalCapitalWithdrawn.String(),
		"tokens_supplied", s.TokensSupplied,
		"canceled", s.Canceled,
		"ended", s.Ended,
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		EventID:    id.NewEventID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
