package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"nearby_server/models"
	"nearby_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
)

// signalRecord is the flat DynamoDB layout of a user item. Timestamps are unix
// milliseconds so the GSI sort keys order numerically.
type signalRecord struct {
	UserID               string                 `dynamodbav:"userId"` // Partition Key
	Name                 string                 `dynamodbav:"name,omitempty"`
	Username             string                 `dynamodbav:"username,omitempty"`
	Bio                  string                 `dynamodbav:"bio,omitempty"`
	Age                  int                    `dynamodbav:"age,omitempty"`
	PhotoKey             string                 `dynamodbav:"photoKey,omitempty"`
	EmailID              string                 `dynamodbav:"emailId,omitempty"`
	IsDiscoverable       bool                   `dynamodbav:"isDiscoverable"`
	IsActive             bool                   `dynamodbav:"isActive"`
	DiscoveryRangeMeters int                    `dynamodbav:"discoveryRangeMeters,omitempty"`
	Privacy              models.PrivacySettings `dynamodbav:"privacySettings"`
	LastSeen             int64                  `dynamodbav:"lastSeen,omitempty"`

	Latitude           *float64 `dynamodbav:"latitude,omitempty"`
	Longitude          *float64 `dynamodbav:"longitude,omitempty"`
	GPSUpdatedAt       int64    `dynamodbav:"gpsUpdatedAt,omitempty"`
	NetworkID          string   `dynamodbav:"networkId,omitempty"`     // networkId-index PK
	WiFiUpdatedAt      int64    `dynamodbav:"wifiUpdatedAt,omitempty"` // networkId-index SK
	DeviceID           string   `dynamodbav:"deviceId,omitempty"`      // deviceId-index PK
	BluetoothUpdatedAt int64    `dynamodbav:"bluetoothUpdatedAt,omitempty"`
}

func (r *signalRecord) toProfile() *models.UserProfile {
	p := &models.UserProfile{
		UserID:               r.UserID,
		Name:                 r.Name,
		Username:             r.Username,
		Bio:                  r.Bio,
		Age:                  r.Age,
		PhotoKey:             r.PhotoKey,
		Email:                r.EmailID,
		IsDiscoverable:       r.IsDiscoverable,
		IsActive:             r.IsActive,
		DiscoveryRangeMeters: r.DiscoveryRangeMeters,
		Privacy:              r.Privacy,
	}
	if r.LastSeen != 0 {
		t := fromMillis(r.LastSeen)
		p.LastSeen = &t
	}
	if r.Latitude != nil && r.Longitude != nil {
		p.GPS = &models.GPSSignal{Latitude: *r.Latitude, Longitude: *r.Longitude, UpdatedAt: fromMillis(r.GPSUpdatedAt)}
	}
	if r.NetworkID != "" {
		p.WiFi = &models.WiFiSignal{NetworkID: r.NetworkID, UpdatedAt: fromMillis(r.WiFiUpdatedAt)}
	}
	if r.DeviceID != "" {
		p.Bluetooth = &models.BluetoothSignal{DeviceID: r.DeviceID, UpdatedAt: fromMillis(r.BluetoothUpdatedAt)}
	}
	return p
}

// DynamoSignalStore keeps signals on the Users table.
type DynamoSignalStore struct {
	Dynamo *DynamoService
	Table  string
	// DeviceQueryConcurrency bounds parallel deviceId-index queries per Bluetooth discovery
	DeviceQueryConcurrency int
}

// NewDynamoSignalStore creates a store on table, defaulting to the Users table.
func NewDynamoSignalStore(dynamo *DynamoService, table string) *DynamoSignalStore {
	if table == "" {
		table = models.UserProfilesTable
	}
	return &DynamoSignalStore{Dynamo: dynamo, Table: table, DeviceQueryConcurrency: 8}
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
}

func numberAttr[T int64 | float64](v T) *types.AttributeValueMemberN {
	switch n := any(v).(type) {
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(n, 'f', -1, 64)}
	}
	return nil
}

func unmarshalRecords(items []map[string]types.AttributeValue) ([]*models.UserProfile, error) {
	var records []signalRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users: %w", err)
	}
	profiles := make([]*models.UserProfile, 0, len(records))
	for i := range records {
		profiles = append(profiles, records[i].toProfile())
	}
	return profiles, nil
}

// GetProfile retrieves a user by ID
func (s *DynamoSignalStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	item, err := s.Dynamo.GetItem(ctx, s.Table, userKey(userID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	var record signalRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %s: %w", userID, err)
	}
	return record.toProfile(), nil
}

// SaveSignal overwrites one channel's attributes and lastSeen in a single UpdateItem.
func (s *DynamoSignalStore) SaveSignal(ctx context.Context, userID string, update models.SignalUpdate) (*models.UserProfile, error) {
	ts := numberAttr(millis(update.UpdatedAt()))
	values := map[string]types.AttributeValue{":ts": ts}

	var expr string
	switch {
	case update.GPS != nil:
		expr = "SET latitude = :lat, longitude = :lon, gpsUpdatedAt = :ts, lastSeen = :ts"
		values[":lat"] = numberAttr(update.GPS.Latitude)
		values[":lon"] = numberAttr(update.GPS.Longitude)
	case update.WiFi != nil:
		expr = "SET networkId = :nid, wifiUpdatedAt = :ts, lastSeen = :ts"
		values[":nid"] = &types.AttributeValueMemberS{Value: update.WiFi.NetworkID}
	case update.Bluetooth != nil:
		expr = "SET deviceId = :did, bluetoothUpdatedAt = :ts, lastSeen = :ts"
		values[":did"] = &types.AttributeValueMemberS{Value: update.Bluetooth.DeviceID}
	default:
		return nil, fmt.Errorf("empty signal update for user %s", userID)
	}

	attrs, err := s.Dynamo.UpdateItem(ctx, s.Table, userKey(userID), expr, "attribute_exists(userId)", values, nil)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	var record signalRecord
	if err := attributevalue.UnmarshalMap(attrs, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated user %s: %w", userID, err)
	}
	return record.toProfile(), nil
}

const discoverableFilter = "isDiscoverable = :true AND isActive = :true AND userId <> :self"

func discoverableValues(f CandidateFilter) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":true": &types.AttributeValueMemberBOOL{Value: true},
		":self": &types.AttributeValueMemberS{Value: f.ExcludeUserID},
	}
}

// FindNearby scans for users inside the bounding box. DynamoDB has no spatial index,
// so this is a filtered scan; the exact distance check happens in the engine.
func (s *DynamoSignalStore) FindNearby(ctx context.Context, box utils.BoundingBox, f CandidateFilter) ([]*models.UserProfile, error) {
	values := discoverableValues(f)
	values[":minLat"] = numberAttr(box.MinLat)
	values[":maxLat"] = numberAttr(box.MaxLat)
	values[":minLon"] = numberAttr(box.MinLon)
	values[":maxLon"] = numberAttr(box.MaxLon)

	lonCond := "longitude BETWEEN :minLon AND :maxLon"
	if box.WrapsAntimeridian() {
		lonCond = "(longitude >= :minLon OR longitude <= :maxLon)"
	}
	filter := discoverableFilter + " AND latitude BETWEEN :minLat AND :maxLat AND " + lonCond
	if !f.Since.IsZero() {
		filter += " AND gpsUpdatedAt >= :since"
		values[":since"] = numberAttr(millis(f.Since))
	}

	items, err := s.Dynamo.ScanWithFilter(ctx, s.Table, filter, values, nil)
	if err != nil {
		return nil, err
	}
	return unmarshalRecords(items)
}

// FindByNetwork queries networkId-index newest first.
func (s *DynamoSignalStore) FindByNetwork(ctx context.Context, networkID string, f CandidateFilter) ([]*models.UserProfile, error) {
	return s.queryIndex(ctx, models.NetworkIDIndex, "networkId = :id AND wifiUpdatedAt >= :since", networkID, f)
}

// FindByDevices queries deviceId-index once per observed id, then merges newest first.
func (s *DynamoSignalStore) FindByDevices(ctx context.Context, deviceIDs []string, f CandidateFilter) ([]*models.UserProfile, error) {
	results := make([][]*models.UserProfile, len(deviceIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.DeviceQueryConcurrency, 1))
	for i, id := range deviceIDs {
		g.Go(func() error {
			found, err := s.queryIndex(gctx, models.DeviceIDIndex, "deviceId = :id AND bluetoothUpdatedAt >= :since", id, f)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []*models.UserProfile
	for _, found := range results {
		for _, p := range found {
			if _, dup := seen[p.UserID]; dup {
				continue
			}
			seen[p.UserID] = struct{}{}
			merged = append(merged, p)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return newerFirst(merged[i].Bluetooth.UpdatedAt, merged[j].Bluetooth.UpdatedAt, merged[i].UserID, merged[j].UserID)
	})
	if f.Limit > 0 && len(merged) > f.Limit {
		merged = merged[:f.Limit]
	}
	return merged, nil
}

func (s *DynamoSignalStore) queryIndex(ctx context.Context, index, keyCond, id string, f CandidateFilter) ([]*models.UserProfile, error) {
	values := discoverableValues(f)
	values[":id"] = &types.AttributeValueMemberS{Value: id}
	values[":since"] = numberAttr(millis(f.Since))

	start := time.Now()
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, s.Table, index, keyCond, discoverableFilter, values, nil, true, f.Limit)
	if err != nil {
		return nil, err
	}
	slog.Debug("candidate index query", "index", index, "items", len(items), "elapsed", time.Since(start))
	return unmarshalRecords(items)
}
