package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/agency-backoffice/internal/domain"
)

// RequestRepo provides typed DynamoDB operations for the service requests table.
type RequestRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRequestRepo(client *dynamodb.Client, tableName string) *RequestRepo {
	return &RequestRepo{client: client, tableName: tableName}
}

func (r *RequestRepo) Create(ctx context.Context, req *domain.ServiceRequest) error {
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldRequestID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("request %s: %w", req.RequestID, domain.ErrConflict)
	}
	return err
}

func (r *RequestRepo) Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldRequestID, requestID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	var req domain.ServiceRequest
	if err := attributevalue.UnmarshalMap(out.Item, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// List queries the status index when status is set and scans otherwise.
// Results are newest first.
func (r *RequestRepo) List(ctx context.Context, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	var items []map[string]types.AttributeValue
	if status != "" {
		p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(indexStatus),
			KeyConditionExpression:    aws.String("#s = :s"),
			ExpressionAttributeNames:  map[string]string{"#s": fieldStatus},
			ExpressionAttributeValues: map[string]types.AttributeValue{":s": &types.AttributeValueMemberS{Value: string(status)}},
			ScanIndexForward:          aws.Bool(false),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			items = append(items, page.Items...)
		}
	} else {
		p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			items = append(items, page.Items...)
		}
	}

	requests := make([]domain.ServiceRequest, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &requests); err != nil {
		return nil, err
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].RequestID > requests[j].RequestID })
	return requests, nil
}

// UpdateReview writes the review fields only while the stored status equals
// expect. The old item returned on a failed condition tells a missing
// request from a conflicting one.
func (r *RequestRepo) UpdateReview(ctx context.Context, req *domain.ServiceRequest, expect domain.RequestStatus) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:     req.Status,
		fieldNote:       req.Note,
		fieldReviewedBy: req.ReviewedBy,
		fieldUpdatedAt:  req.UpdatedAt,
	})
	if err != nil {
		return err
	}
	ue.Names["#cur"] = fieldStatus
	ue.Values[":expect"] = &types.AttributeValueMemberS{Value: string(expect)}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldRequestID, req.RequestID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String("#cur = :expect"),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return fmt.Errorf("request %s: %w", req.RequestID, domain.ErrNotFound)
		}
		return fmt.Errorf("request %s is no longer %s: %w", req.RequestID, expect, domain.ErrConflict)
	}
	return err
}

func (r *RequestRepo) SaveScore(ctx context.Context, requestID string, score *domain.ScoreResult, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldScore:     score,
		fieldUpdatedAt: at,
	})
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldRequestID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldRequestID, requestID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	return err
}
