package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"crisis-assistant/internal/domain"
)

const skState = "STATE#"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps one state item per session. The table needs a string
// PK/SK key and TTL enabled on the "ttl" attribute.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
}

func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: resolveTTL(ttl)}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func stateKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

// GetState reads the session item. Items past their ttl are treated as absent
// since DynamoDB deletes expired items lazily.
func (d *DynamoStore) GetState(ctx context.Context, sessionID string) (domain.DialogueState, error) {
	if !validSessionID(sessionID) {
		return domain.DialogueState{}, errors.New("repository: session id is required")
	}
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            stateKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.DialogueState{}, fmt.Errorf("repository: GetState get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.NewDialogueState(sessionID), nil
	}

	state, expires, err := itemToState(sessionID, out.Item)
	if err != nil {
		return domain.DialogueState{}, fmt.Errorf("repository: GetState decode: %w", err)
	}
	if expires > 0 && expires <= now().Unix() {
		return domain.NewDialogueState(sessionID), nil
	}
	return state, nil
}

// SaveState replaces the session item and pushes its ttl forward.
func (d *DynamoStore) SaveState(ctx context.Context, state domain.DialogueState) error {
	if !validSessionID(state.SessionID) {
		return errors.New("repository: session id is required")
	}
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      d.stateItem(state),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveState: %w", err)
	}
	return nil
}

func (d *DynamoStore) stateItem(state domain.DialogueState) map[string]types.AttributeValue {
	t := now()
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = t
	}
	item := stateKey(state.SessionID)
	item["sessionId"] = &types.AttributeValueMemberS{Value: state.SessionID}
	item["lastTopic"] = &types.AttributeValueMemberS{Value: string(state.LastTopic)}
	item["turns"] = &types.AttributeValueMemberN{Value: strconv.Itoa(state.Turns)}
	item["lastActivity"] = &types.AttributeValueMemberS{Value: updated.UTC().Format(time.RFC3339)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Add(d.ttl).Unix(), 10)}
	return item
}

// itemToState converts a DynamoDB attribute map to a DialogueState and its
// expiry as Unix seconds (0 when absent).
func itemToState(sessionID string, item map[string]types.AttributeValue) (domain.DialogueState, int64, error) {
	state := domain.NewDialogueState(sessionID)

	raw, err := strAttr(item, "lastTopic")
	if err != nil {
		return state, 0, err
	}
	if raw != "" {
		topic, err := domain.ParseTopic(raw)
		if err != nil {
			return state, 0, err
		}
		state.Remember(topic)
	}

	if _, ok := item["turns"]; ok {
		turns, err := intAttr(item, "turns")
		if err != nil {
			return state, 0, err
		}
		state.Turns = turns
	}
	if s, err := strAttr(item, "lastActivity"); err == nil {
		if ts, perr := time.Parse(time.RFC3339, s); perr == nil {
			state.UpdatedAt = ts
		}
	}

	var expires int64
	if _, ok := item["ttl"]; ok {
		n, err := intAttr(item, "ttl")
		if err != nil {
			return state, 0, err
		}
		expires = int64(n)
	}
	return state, expires, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
