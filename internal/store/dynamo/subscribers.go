package dynamo

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	dbtypes "github.com/nitesh/lega/internal/db"
	"github.com/nitesh/lega/pkg/models"
)

const (
	attrEndpoint  = "endpoint"
	attrID        = "id"
	attrP256dh    = "p256dh"
	attrAuth      = "auth"
	attrInterests = "interests"
)

// SaveSubscriber upserts the subscription keyed by endpoint, keeping the
// id and created_at of an existing item.
func (s *Store) SaveSubscriber(ctx context.Context, sub *models.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Interests == nil {
		sub.Interests = dbtypes.StringSlice{}
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	interests, err := json.Marshal([]string(sub.Interests))
	if err != nil {
		return err
	}

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.subscribers),
		Key:       map[string]types.AttributeValue{attrEndpoint: str(sub.Endpoint)},
		UpdateExpression: aws.String("SET #p = :p, #a = :a, #i = :i, " +
			"#id = if_not_exists(#id, :id), #c = if_not_exists(#c, :c)"),
		ExpressionAttributeNames: map[string]string{
			"#p": attrP256dh, "#a": attrAuth, "#i": attrInterests, "#id": attrID, "#c": attrCreatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":  str(sub.P256dh),
			":a":  str(sub.Auth),
			":i":  str(string(interests)),
			":id": str(sub.ID),
			":c":  str(sub.CreatedAt.Format(time.RFC3339Nano)),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return mapError(err, "save subscriber")
	}
	if out != nil {
		if id := getS(out.Attributes, attrID); id != "" {
			sub.ID = id
		}
	}
	return nil
}

// ListSubscribers scans every subscription, oldest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(s.subscribers)}
	subs := []*models.Subscriber{}
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return nil, mapError(err, "list subscribers")
		}
		for _, item := range out.Items {
			sub := &models.Subscriber{
				ID:        getS(item, attrID),
				Endpoint:  getS(item, attrEndpoint),
				P256dh:    getS(item, attrP256dh),
				Auth:      getS(item, attrAuth),
				Interests: dbtypes.StringSlice{},
			}
			if raw := getS(item, attrInterests); raw != "" {
				if err := sub.Interests.Scan(raw); err != nil {
					s.log.Warn("undecodable subscriber interests", "endpoint", sub.Endpoint, "error", err)
				}
			}
			sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, getS(item, attrCreatedAt))
			subs = append(subs, sub)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (s *Store) DeleteSubscriber(ctx context.Context, endpoint string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.subscribers),
		Key:       map[string]types.AttributeValue{attrEndpoint: str(endpoint)},
	})
	return mapError(err, "delete subscriber")
}
