package store

import (
	"context"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

// NodeFields is a partial update for update_node_fields. Nil
// fields are left unchanged; ID and CreatedAt may never be patched.
type NodeFields struct {
	Content *string
	Summary *string
	Stability *float64
	Difficulty *float64
	State *types.ReviewState
	LastReview *time.Time
	NextReview *time.Time
	Reps *int
	Lapses *int
	StorageStrength *float64
	RetrievalStrength *float64
	StabilityFactor *float64
	SentimentIntensity *float64
	Confidence *float64
	IsContradicted *bool
	ContradictionIDs []string
	Tags []string
	People []string
	Concepts []string
	Events []string
}

// Statement is one operation submitted to Batch. Backends interpret Op/Args
// however suits their dialect; the SQLite and Postgres adapters execute Op
// as raw SQL with Args as its positional parameters.
type Statement struct {
	Op string
	Args []interface{}
}

// TxScope is handed to the function passed to Transaction; Execute runs
// one statement within the open transaction.
type TxScope interface {
	Execute(ctx context.Context, stmt Statement) error
}

// Store is the durable-entity contract. Implementations
// (internal/store/sqlite, internal/store/postgres) own node/edge/person/
// intention/embedding rows and the full-text index; exactly one writer is
// assumed at a time.
type Store interface {
	InsertNode(ctx context.Context, n *types.KnowledgeNode) (string, error)
	GetNode(ctx context.Context, id string) (*types.KnowledgeNode, error)
	UpdateNodeAccess(ctx context.Context, id string) error
	UpdateNodeFields(ctx context.Context, id string, patch NodeFields) error
	DeleteNode(ctx context.Context, id string) error

	InsertEdge(ctx context.Context, e *types.GraphEdge) (string, error)
	GetEdges(ctx context.Context, nodeID string) ([]*types.GraphEdge, error)

	InsertPerson(ctx context.Context, p *types.Person) (string, error)
	GetPerson(ctx context.Context, id string) (*types.Person, error)

	InsertIntention(ctx context.Context, in *types.Intention) (string, error)
	GetIntention(ctx context.Context, id string) (*types.Intention, error)
	ListIntentions(ctx context.Context, status types.IntentionStatus) ([]*types.Intention, error)
	UpdateIntention(ctx context.Context, in *types.Intention) error

	UpsertEmbedding(ctx context.Context, e *types.Embedding) error
	GetEmbedding(ctx context.Context, nodeID string) (*types.Embedding, error)
	AllEmbeddings(ctx context.Context) ([]*types.Embedding, error)

	Batch(ctx context.Context, stmts []Statement) error
	Transaction(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error

	SearchNodes(ctx context.Context, query string, opts SearchOptions) ([]ScoredNode, int, error)
	GetRecentNodes(ctx context.Context, opts RecentOptions) ([]*types.KnowledgeNode, error)
	ListNodesByLastAccess(ctx context.Context, limit int) ([]*types.KnowledgeNode, error)

	GetDatabaseSize(ctx context.Context) (DatabaseSize, error)
	CheckHealth(ctx context.Context) (HealthReport, error)

	Close() error
}
