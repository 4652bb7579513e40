package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nearby_server/models"
	"nearby_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RelationshipOracle answers, for a requester and a batch of candidates, whether each
// candidate counts the requester as a friend and whether a request is pending between them.
// Candidates without any relationship may be absent from the returned map.
type RelationshipOracle interface {
	Relationships(ctx context.Context, requesterID string, candidateIDs []string) (map[string]models.Relationship, error)
}

// DynamoRelationshipOracle reads the friends set on each candidate's user item and
// pending rows of the Interactions table in both directions.
type DynamoRelationshipOracle struct {
	Dynamo            *DynamoService
	UsersTable        string
	InteractionsTable string
}

// NewDynamoRelationshipOracle creates an oracle over the given tables, falling back to the default names.
func NewDynamoRelationshipOracle(dynamo *DynamoService, usersTable, interactionsTable string) *DynamoRelationshipOracle {
	if usersTable == "" {
		usersTable = models.UserProfilesTable
	}
	if interactionsTable == "" {
		interactionsTable = models.InteractionsTable
	}
	return &DynamoRelationshipOracle{Dynamo: dynamo, UsersTable: usersTable, InteractionsTable: interactionsTable}
}

func (o *DynamoRelationshipOracle) Relationships(ctx context.Context, requesterID string, candidateIDs []string) (map[string]models.Relationship, error) {
	out := make(map[string]models.Relationship, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return out, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		keys = append(keys, userKey(id))
	}
	items, err := o.Dynamo.BatchGetItems(ctx, o.UsersTable, keys, "userId, friends")
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		id := utils.ExtractString(item, "userId")
		for _, friend := range utils.ExtractStringSet(item, "friends") {
			if friend == requesterID {
				out[id] = models.Relationship{IsFriend: true}
				break
			}
		}
	}

	pending, err := o.pendingCounterparts(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	for _, id := range candidateIDs {
		if _, ok := pending[id]; ok {
			rel := out[id]
			rel.HasPendingRequest = true
			out[id] = rel
		}
	}
	return out, nil
}

// pendingCounterparts returns every user with a pending interaction to or from userID.
func (o *DynamoRelationshipOracle) pendingCounterparts(ctx context.Context, userID string) (map[string]struct{}, error) {
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":user":    &types.AttributeValueMemberS{Value: userID},
		":pending": &types.AttributeValueMemberS{Value: models.StatusPending},
	}

	sent, err := o.Dynamo.QueryItemsWithIndex(ctx, o.InteractionsTable, "", "senderId = :user", "#status = :pending", values, names, true, 0)
	if err != nil {
		return nil, err
	}
	received, err := o.Dynamo.QueryItemsWithIndex(ctx, o.InteractionsTable, models.ReceiverIDIndex, "receiverId = :user", "#status = :pending", values, names, true, 0)
	if err != nil {
		return nil, err
	}

	var interactions []models.Interaction
	if err := attributevalue.UnmarshalListOfMaps(append(sent, received...), &interactions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interactions: %w", err)
	}
	counterparts := make(map[string]struct{}, len(interactions))
	for _, in := range interactions {
		if in.SenderID == userID {
			counterparts[in.ReceiverID] = struct{}{}
		} else {
			counterparts[in.SenderID] = struct{}{}
		}
	}
	return counterparts, nil
}

// PostgresRelationshipOracle reads the friendships and interactions tables.
type PostgresRelationshipOracle struct {
	db *sqlx.DB
}

// NewPostgresRelationshipOracle creates a new PostgresRelationshipOracle instance
func NewPostgresRelationshipOracle(db *sqlx.DB) *PostgresRelationshipOracle {
	return &PostgresRelationshipOracle{db: db}
}

func (o *PostgresRelationshipOracle) Relationships(ctx context.Context, requesterID string, candidateIDs []string) (map[string]models.Relationship, error) {
	out := make(map[string]models.Relationship, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return out, nil
	}

	var friends []string
	err := o.db.SelectContext(ctx, &friends,
		`SELECT user_id FROM friendships WHERE friend_id = $1 AND user_id = ANY($2);`,
		requesterID, pq.Array(candidateIDs))
	if err != nil {
		return nil, err
	}
	for _, id := range friends {
		out[id] = models.Relationship{IsFriend: true}
	}

	var pending []string
	err = o.db.SelectContext(ctx, &pending, `
	SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END
	FROM interactions
	WHERE status = 'pending'
	  AND ((sender_id = $1 AND receiver_id = ANY($2)) OR (receiver_id = $1 AND sender_id = ANY($2)));`,
		requesterID, pq.Array(candidateIDs))
	if err != nil {
		return nil, err
	}
	for _, id := range pending {
		rel := out[id]
		rel.HasPendingRequest = true
		out[id] = rel
	}
	return out, nil
}

// MemoryRelationshipOracle is an in-process oracle for local development and tests.
type MemoryRelationshipOracle struct {
	mu      sync.RWMutex
	friends map[string]map[string]struct{} // user -> their friends
	pending map[[2]string]struct{}         // sender, receiver
}

// NewMemoryRelationshipOracle creates an oracle with no relationships.
func NewMemoryRelationshipOracle() *MemoryRelationshipOracle {
	return &MemoryRelationshipOracle{
		friends: make(map[string]map[string]struct{}),
		pending: make(map[[2]string]struct{}),
	}
}

// AddFriendship records a mutual friendship.
func (o *MemoryRelationshipOracle) AddFriendship(a, b string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if o.friends[pair[0]] == nil {
			o.friends[pair[0]] = make(map[string]struct{})
		}
		o.friends[pair[0]][pair[1]] = struct{}{}
	}
}

// AddPendingRequest records a pending request from sender to receiver.
func (o *MemoryRelationshipOracle) AddPendingRequest(sender, receiver string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[[2]string{sender, receiver}] = struct{}{}
}

func (o *MemoryRelationshipOracle) Relationships(ctx context.Context, requesterID string, candidateIDs []string) (map[string]models.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]models.Relationship, len(candidateIDs))
	for _, id := range candidateIDs {
		var rel models.Relationship
		_, rel.IsFriend = o.friends[id][requesterID]
		_, sent := o.pending[[2]string{requesterID, id}]
		_, received := o.pending[[2]string{id, requesterID}]
		rel.HasPendingRequest = sent || received
		if rel.IsFriend || rel.HasPendingRequest {
			out[id] = rel
		}
	}
	return out, nil
}

// CachedRelationshipOracle memoizes answers per requester/candidate pair for a short TTL.
// A new friendship or request may therefore take up to TTL to show up in discovery.
// Entries are per ordered pair, so during that window A's view of B and B's view
// of A can disagree: one side may already see a new request while the other does not.
type CachedRelationshipOracle struct {
	inner RelationshipOracle
	cache *ttlcache.Cache[string, models.Relationship]
	ttl   time.Duration
}

// NewCachedRelationshipOracle wraps inner. Call Stop when done to end the expiry loop.
func NewCachedRelationshipOracle(inner RelationshipOracle, ttl time.Duration) *CachedRelationshipOracle {
	cache := ttlcache.New[string, models.Relationship](
		ttlcache.WithTTL[string, models.Relationship](ttl),
	)
	go cache.Start()
	return &CachedRelationshipOracle{inner: inner, cache: cache, ttl: ttl}
}

func (o *CachedRelationshipOracle) Stop() {
	o.cache.Stop()
}

func pairKey(requesterID, candidateID string) string {
	return requesterID + "\x00" + candidateID
}

func (o *CachedRelationshipOracle) Relationships(ctx context.Context, requesterID string, candidateIDs []string) (map[string]models.Relationship, error) {
	out := make(map[string]models.Relationship, len(candidateIDs))
	var missing []string
	for _, id := range candidateIDs {
		item := o.cache.Get(pairKey(requesterID, id), ttlcache.WithDisableTouchOnHit[string, models.Relationship]())
		if item == nil {
			missing = append(missing, id)
			continue
		}
		if rel := item.Value(); rel.IsFriend || rel.HasPendingRequest {
			out[id] = rel
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	slog.Debug("relationship cache miss", "requester", requesterID, "missing", len(missing))
	fetched, err := o.inner.Relationships(ctx, requesterID, missing)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		rel := fetched[id]
		o.cache.Set(pairKey(requesterID, id), rel, o.ttl)
		if rel.IsFriend || rel.HasPendingRequest {
			out[id] = rel
		}
	}
	return out, nil
}
