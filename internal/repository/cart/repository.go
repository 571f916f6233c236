package cart

import "context"

// Repository mirrors cart snapshots keyed by checkout session. Writes are
// idempotent upserts; the checkout flow treats failures as non-fatal.
type Repository interface {
	UpsertSnapshot(ctx context.Context, sessionID string, snapshot []byte) error
	GetSnapshot(ctx context.Context, sessionID string) ([]byte, error)
}
