package events

import (
	"context"
	"errors"
	"log"

	"claims-orchestrator/internal/domain"
	"claims-orchestrator/internal/workflow"
)

// ClaimDocumentStore is the slice of the claim store the upload recorder
// needs.
type ClaimDocumentStore interface {
	GetClaim(ctx context.Context, claimID string) (domain.Claim, error)
	SetClaimMetadata(ctx context.Context, claimID, key string, value any) error
}

const documentKeysMetadata = "document_keys"

// RecordUpload returns an upload-event handler that appends the new object
// key to the claim's document_keys metadata. Events for unknown claims are
// logged and dropped so a stray object never stalls the stream.
func RecordUpload(store ClaimDocumentStore) func(context.Context, UploadEvent) error {
	return func(ctx context.Context, event UploadEvent) error {
		claim, err := store.GetClaim(ctx, event.ClaimID)
		if err != nil {
			if errors.Is(err, workflow.ErrClaimNotFound) {
				log.Printf("upload event for unknown claim %s (object %s), skipping", event.ClaimID, event.ObjectKey)
				return nil
			}
			return err
		}

		keys := existingKeys(claim)
		for _, key := range keys {
			if key == event.ObjectKey {
				return nil
			}
		}
		keys = append(keys, event.ObjectKey)

		if err := store.SetClaimMetadata(ctx, event.ClaimID, documentKeysMetadata, keys); err != nil {
			return err
		}
		log.Printf("[%s] recorded document %s", event.ClaimID, event.Filename)
		return nil
	}
}

func existingKeys(claim domain.Claim) []string {
	raw, ok := claim.Metadata[documentKeysMetadata]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		keys := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				keys = append(keys, s)
			}
		}
		return keys
	default:
		return nil
	}
}
