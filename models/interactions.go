package models

// Only pending friend requests matter for discovery
const (
	InteractionTypeFriendRequest = "friend_request"
	StatusPending                = "pending"
)

// Interaction is a request from one user to another, e.g. a friend request.
type Interaction struct {
	SenderID   string `dynamodbav:"senderId" json:"senderId"`     // Partition Key
	ReceiverID string `dynamodbav:"receiverId" json:"receiverId"` // Sort Key, also GSI partition key
	Type       string `dynamodbav:"type" json:"type"`
	Status     string `dynamodbav:"status" json:"status"`
	CreatedAt  string `dynamodbav:"createdAt" json:"createdAt"`
}

// InteractionsTable is the DynamoDB table holding interactions
const InteractionsTable = "Interactions"

// ReceiverIDIndex lets us query interactions addressed to a user
const ReceiverIDIndex = "receiverId-index"

// Relationship is what the relationship oracle knows about a requester/candidate pair.
type Relationship struct {
	IsFriend          bool
	HasPendingRequest bool
}
