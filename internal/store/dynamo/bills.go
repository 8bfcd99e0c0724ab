package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	dbtypes "github.com/nitesh/lega/internal/db"
	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/pkg/models"
)

const (
	attrBillID    = "bill_id"
	attrState     = "state"
	attrTitle     = "title"
	attrSummary   = "summary"
	attrAudioURL  = "audio_url"
	attrTags      = "tags"
	attrSector    = "sector"
	attrSourceURL = "source_url"
	attrCreatedAt = "created_at"
	attrUpdatedAt = "updated_at"
)

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func billItem(b *models.Bill, created, updated time.Time) (map[string]types.AttributeValue, error) {
	summary, err := json.Marshal(b.Summary)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	tags := b.Tags
	if tags == nil {
		tags = dbtypes.StringSlice{}
	}
	tagsJSON, err := json.Marshal([]string(tags))
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	state := b.State
	if state == "" {
		state = models.DefaultState
	}
	return map[string]types.AttributeValue{
		attrBillID:    str(b.BillID),
		attrState:     str(state),
		attrTitle:     str(b.Title),
		attrSummary:   str(string(summary)),
		attrAudioURL:  str(b.AudioURL),
		attrTags:      str(string(tagsJSON)),
		attrSector:    str(string(b.Sector)),
		attrSourceURL: str(b.SourceURL),
		attrCreatedAt: str(created.Format(time.RFC3339Nano)),
		attrUpdatedAt: str(updated.Format(time.RFC3339Nano)),
	}, nil
}

func getS(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func parseBill(item map[string]types.AttributeValue) (*models.Bill, error) {
	b := &models.Bill{
		BillID:    getS(item, attrBillID),
		State:     getS(item, attrState),
		Title:     getS(item, attrTitle),
		AudioURL:  getS(item, attrAudioURL),
		Sector:    models.Sector(getS(item, attrSector)),
		SourceURL: getS(item, attrSourceURL),
		Tags:      dbtypes.StringSlice{},
	}
	if raw := getS(item, attrSummary); raw != "" {
		if err := json.Unmarshal([]byte(raw), &b.Summary); err != nil {
			return nil, fmt.Errorf("bill %s: decode summary: %w", b.BillID, err)
		}
	}
	if raw := getS(item, attrTags); raw != "" {
		if err := b.Tags.Scan(raw); err != nil {
			return nil, fmt.Errorf("bill %s: decode tags: %w", b.BillID, err)
		}
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, getS(item, attrCreatedAt))
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, getS(item, attrUpdatedAt))
	return b, nil
}

// GetBill returns the stored bill or domain.ErrNotFound.
func (s *Store) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.bills),
		Key:            map[string]types.AttributeValue{attrBillID: str(id)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, mapError(err, "get bill "+id)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("get bill %s: %w", id, domain.ErrNotFound)
	}
	return parseBill(out.Item)
}

// InsertBill writes b with a conditional put that fails if the key exists.
func (s *Store) InsertBill(ctx context.Context, b *models.Bill) (bool, error) {
	if err := b.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	item, err := billItem(b, now, now)
	if err != nil {
		return false, err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.bills),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrBillID + ")"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err, "insert bill "+b.BillID)
	}
	b.CreatedAt, b.UpdatedAt = now, now
	return true, nil
}

// UpsertBill replaces the generated fields of b in one UpdateItem call.
// created_at is only set when the item is new.
func (s *Store) UpsertBill(ctx context.Context, b *models.Bill) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	created := b.CreatedAt
	if created.IsZero() {
		created = now
	}
	item, err := billItem(b, created, now)
	if err != nil {
		return err
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets []string
	for _, attr := range []string{attrState, attrTitle, attrSummary, attrAudioURL, attrTags, attrSector, attrSourceURL, attrUpdatedAt} {
		names["#"+attr] = attr
		values[":"+attr] = item[attr]
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
	}
	names["#"+attrCreatedAt] = attrCreatedAt
	values[":"+attrCreatedAt] = item[attrCreatedAt]
	sets = append(sets, fmt.Sprintf("#%s = if_not_exists(#%s, :%s)", attrCreatedAt, attrCreatedAt, attrCreatedAt))

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.bills),
		Key:                       map[string]types.AttributeValue{attrBillID: str(b.BillID)},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return mapError(err, "upsert bill "+b.BillID)
	}
	b.UpdatedAt = now
	b.CreatedAt = created
	if out != nil && len(out.Attributes) > 0 {
		if t, err := time.Parse(time.RFC3339Nano, getS(out.Attributes, attrCreatedAt)); err == nil {
			b.CreatedAt = t
		}
	}
	return nil
}

// ListBills scans the bills table and returns the newest matches first.
func (s *Store) ListBills(ctx context.Context, f models.FeedFilter) ([]*models.Bill, error) {
	f = f.Normalize()

	in := &dynamodb.ScanInput{TableName: aws.String(s.bills)}
	var conds []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	if f.Sector != "" {
		conds = append(conds, "#sector = :sector")
		names["#sector"] = attrSector
		values[":sector"] = str(string(f.Sector))
	}
	if f.State != "" {
		conds = append(conds, "#state = :state")
		names["#state"] = attrState
		values[":state"] = str(f.State)
	}
	if f.Tag != "" {
		quoted, _ := json.Marshal(f.Tag)
		conds = append(conds, "contains(#tags, :tag)")
		names["#tags"] = attrTags
		values[":tag"] = str(string(quoted))
	}
	if len(conds) > 0 {
		in.FilterExpression = aws.String(strings.Join(conds, " AND "))
		in.ExpressionAttributeNames = names
		in.ExpressionAttributeValues = values
	}

	var bills []*models.Bill
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return nil, mapError(err, "list bills")
		}
		for _, item := range out.Items {
			b, err := parseBill(item)
			if err != nil {
				s.log.Warn("skipping undecodable bill", "error", err)
				continue
			}
			bills = append(bills, b)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.SliceStable(bills, func(i, j int) bool {
		if !bills[i].UpdatedAt.Equal(bills[j].UpdatedAt) {
			return bills[i].UpdatedAt.After(bills[j].UpdatedAt)
		}
		return bills[i].BillID < bills[j].BillID
	})
	if len(bills) > f.Limit {
		bills = bills[:f.Limit]
	}
	if bills == nil {
		bills = []*models.Bill{}
	}
	return bills, nil
}
