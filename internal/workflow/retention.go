package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/repository"
)

// Retention period sources reported to metrics.
const (
	retentionSourceDefaultPolicy = "default_policy"
	retentionSourceFallback      = "fallback"
	retentionSourceExplicit      = "explicit"
)

// resolveDefaultRetention looks up the firm's active default policy for the
// document type and returns its period and policy ID. When no default policy
// exists the built-in fallback period applies with a nil policy ID. Empty
// document types resolve against the catch-all type.
func resolveDefaultRetention(ctx context.Context, retentions repository.RetentionRepository, logger zerolog.Logger, firmID uuid.UUID, documentType string) (domain.RetentionPeriod, *uuid.UUID, string, error) {
	if documentType == "" {
		documentType = domain.DefaultDocumentType
	}

	policy, err := retentions.GetDefaultPolicy(ctx, firmID, documentType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug().
				Str("firm_id", firmID.String()).
				Str("document_type", documentType).
				Msg("no default retention policy, applying fallback period")
			return domain.DefaultRetentionPeriod(), nil, retentionSourceFallback, nil
		}
		return domain.RetentionPeriod{}, nil, "", fmt.Errorf("failed to resolve default retention policy: %w", err)
	}

	return policy.Period(), &policy.ID, retentionSourceDefaultPolicy, nil
}
