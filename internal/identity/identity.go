// Package identity resolves organization member ids to display names.
package identity

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Directory looks up a member's display name. An empty name with a nil
// error means the member is unknown.
type Directory interface {
	MemberDisplayName(ctx context.Context, memberID uuid.UUID) (string, error)
}

// Lookup memoizes Directory results for the lifetime of one request.
// It is not safe for concurrent use.
type Lookup struct {
	dir    Directory
	logger *zap.Logger
	names  map[uuid.UUID]string
}

// NewLookup creates a per-request lookup.
func NewLookup(dir Directory, logger *zap.Logger) *Lookup {
	return &Lookup{dir: dir, logger: logger, names: make(map[uuid.UUID]string)}
}

// Name returns the member's display name, or the raw id when the directory
// fails or does not know the member.
func (l *Lookup) Name(ctx context.Context, memberID uuid.UUID) string {
	if name, ok := l.names[memberID]; ok {
		return name
	}

	name, err := l.dir.MemberDisplayName(ctx, memberID)
	if err != nil {
		l.logger.Warn("member lookup failed", zap.String("member_id", memberID.String()), zap.Error(err))
	}
	if err != nil || name == "" {
		name = memberID.String()
	}
	l.names[memberID] = name
	return name
}

// Names resolves ids in order.
func (l *Lookup) Names(ctx context.Context, memberIDs []uuid.UUID) []string {
	out := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		out = append(out, l.Name(ctx, id))
	}
	return out
}
