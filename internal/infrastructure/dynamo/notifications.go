package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/pkg/id"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *NotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now().UTC()
	}
	if n.NotificationID == "" {
		n.NotificationID = id.At(n.CreatedAt)
	}
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	item[fieldFeed] = &types.AttributeValueMemberS{Value: adminFeed}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldNotificationID, notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListUnread walks the feed index newest first, filtering on is_read.
func (r *NotificationRepo) ListUnread(ctx context.Context) ([]domain.Notification, error) {
	input := r.feedQuery()
	input.FilterExpression = aws.String("#r = :false")
	input.ExpressionAttributeNames["#r"] = fieldIsRead
	input.ExpressionAttributeValues[":false"] = &types.AttributeValueMemberBOOL{Value: false}

	notifications := make([]domain.Notification, 0)
	p := dynamodb.NewQueryPaginator(r.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		notifications = append(notifications, batch...)
	}
	return notifications, nil
}

func (r *NotificationRepo) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	input := r.feedQuery()
	input.Limit = aws.Int32(int32(limit))
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	notifications := make([]domain.Notification, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *NotificationRepo) feedQuery() *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexFeed),
		KeyConditionExpression: aws.String("#feed = :feed"),
		ExpressionAttributeNames: map[string]string{
			"#feed": fieldFeed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":feed": &types.AttributeValueMemberS{Value: adminFeed},
		},
		ScanIndexForward: aws.Bool(false),
	}
}

func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldIsRead: true})
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldNotificationID
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldNotificationID, notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
		}
		return nil, err
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Attributes, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context) (int, error) {
	unread, err := r.ListUnread(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range unread {
		if _, err := r.MarkRead(ctx, n.NotificationID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (r *NotificationRepo) Delete(ctx context.Context, notificationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldNotificationID, notificationID),
		ConditionExpression:      aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldNotificationID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return err
}

// DeleteOlderThan relies on ids being time-sortable: everything below the
// floor id of cutoff was created before it.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexFeed),
		KeyConditionExpression: aws.String("#feed = :feed AND #pk < :floor"),
		ProjectionExpression:   aws.String("#pk"),
		ExpressionAttributeNames: map[string]string{
			"#feed": fieldFeed,
			"#pk":   fieldNotificationID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":feed":  &types.AttributeValueMemberS{Value: adminFeed},
			":floor": &types.AttributeValueMemberS{Value: id.Floor(cutoff)},
		},
	}

	var keys []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(r.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		keys = append(keys, page.Items...)
	}

	deleted := 0
	for _, group := range chunk(keys, 25) {
		if err := r.deleteBatch(ctx, group); err != nil {
			return deleted, err
		}
		deleted += len(group)
	}
	return deleted, nil
}

func (r *NotificationRepo) deleteBatch(ctx context.Context, keys []map[string]types.AttributeValue) error {
	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
	}
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt == 5 {
			return fmt.Errorf("batch delete: %d requests left unprocessed", len(pending[r.tableName]))
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
	}
	return nil
}
