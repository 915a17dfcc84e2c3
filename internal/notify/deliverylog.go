package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/medivuno/scheduler/pkg/logging"
)

const deliveryTTL = 30 * 24 * time.Hour

// DeliveryStatus is the outcome of a notification delivery attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// ErrDeliveryNotFound indicates the requested delivery ID does not exist.
var ErrDeliveryNotFound = errors.New("notify: delivery not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Delivery records one notification delivery attempt.
type Delivery struct {
	DeliveryID    string         `dynamodbav:"deliveryId" json:"deliveryId"`
	EventID       string         `dynamodbav:"eventId" json:"eventId"`
	AppointmentID string         `dynamodbav:"appointmentId" json:"appointmentId"`
	Channel       string         `dynamodbav:"channel" json:"channel"`
	Recipient     string         `dynamodbav:"recipient" json:"recipient"`
	Subject       string         `dynamodbav:"subject" json:"subject"`
	Status        DeliveryStatus `dynamodbav:"status" json:"status"`
	ErrorMessage  string         `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt     string         `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt     int64          `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// DeliveryLog persists delivery attempts to DynamoDB so operators can answer
// "did the doctor get that email" without grepping logs.
type DeliveryLog struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewDeliveryLog builds a log backed by the provided DynamoDB client.
func NewDeliveryLog(client dynamoAPI, tableName string, logger *logging.Logger) *DeliveryLog {
	if client == nil {
		panic("notify: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("notify: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DeliveryLog{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Record inserts a delivery attempt. Missing ID and timestamps are filled in.
func (l *DeliveryLog) Record(ctx context.Context, d *Delivery) error {
	if d == nil {
		return errors.New("notify: delivery cannot be nil")
	}
	now := time.Now().UTC()
	if d.DeliveryID == "" {
		d.DeliveryID = uuid.NewString()
	}
	if d.CreatedAt == "" {
		d.CreatedAt = now.Format(time.RFC3339Nano)
	}
	if d.ExpiresAt == 0 {
		d.ExpiresAt = now.Add(deliveryTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal delivery: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(deliveryId)"),
	})
	if err != nil {
		return fmt.Errorf("notify: failed to persist delivery: %w", err)
	}
	return nil
}

// Get retrieves a delivery attempt by ID.
func (l *DeliveryLog) Get(ctx context.Context, deliveryID string) (*Delivery, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"deliveryId": &types.AttributeValueMemberS{Value: deliveryID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notify: failed to load delivery: %w", err)
	}
	if out.Item == nil {
		return nil, ErrDeliveryNotFound
	}

	var d Delivery
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, fmt.Errorf("notify: failed to unmarshal delivery: %w", err)
	}
	return &d, nil
}
