package capture

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/tracing"
)

const rollbackTimeout = 10 * time.Second

// storageReservation is bytes debited from a tenant's quota ahead of an
// upload. It must end in exactly one of Commit or Rollback.
type storageReservation struct {
	tenants  interfaces.TenantRepository
	tenantID string
	bytes    int64

	mu   sync.Mutex
	done bool
}

// reserveStorage reports ok=false, with no reservation, when the tenant has no room left.
func reserveStorage(ctx context.Context, tenants interfaces.TenantRepository, tenantID string, bytes int64) (*storageReservation, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CaptureProcessor.reserveStorage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("bytes", bytes)

	ok, err := tenants.ReserveStorage(ctx, tenantID, bytes)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	span.LogKV("reserved", ok)
	if !ok {
		return nil, false, nil
	}
	return &storageReservation{tenants: tenants, tenantID: tenantID, bytes: bytes}, true, nil
}

// Commit keeps the debit. Later Rollback calls are no-ops.
func (r *storageReservation) Commit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
}

// Rollback returns the reserved bytes. It runs detached from ctx cancellation
// so a request deadline does not strand the debit.
func (r *storageReservation) Rollback(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}

	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	span, rollbackCtx := opentracing.StartSpanFromContext(rollbackCtx, "CaptureProcessor.rollbackReservation")
	defer span.Finish()
	span.LogKV("bytes", r.bytes)

	if err := r.tenants.ReleaseStorage(rollbackCtx, r.tenantID, r.bytes); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	r.done = true
	return nil
}
