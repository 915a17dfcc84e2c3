package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	putInput  *dynamodb.PutItemInput
	putErr    error
	getOutput *dynamodb.GetItemOutput
	getErr    error
}

func (m *mockDynamo) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

func TestDeliveryLogRecordFillsDefaults(t *testing.T) {
	mock := &mockDynamo{}
	log := NewDeliveryLog(mock, "notification_deliveries", nil)

	err := log.Record(context.Background(), &Delivery{
		EventID:       "evt-1",
		AppointmentID: "appt-1",
		Channel:       "email",
		Recipient:     "doc@clinic.example",
		Subject:       "New appointment",
		Status:        DeliverySent,
	})
	require.NoError(t, err)
	require.NotNil(t, mock.putInput)

	var stored Delivery
	require.NoError(t, attributevalue.UnmarshalMap(mock.putInput.Item, &stored))
	assert.NotEmpty(t, stored.DeliveryID)
	assert.NotEmpty(t, stored.CreatedAt)
	assert.Greater(t, stored.ExpiresAt, time.Now().Unix())

	require.NotNil(t, mock.putInput.ConditionExpression)
	assert.Equal(t, "attribute_not_exists(deliveryId)", *mock.putInput.ConditionExpression)
}

func TestDeliveryLogRecordNilDelivery(t *testing.T) {
	log := NewDeliveryLog(&mockDynamo{}, "notification_deliveries", nil)
	require.Error(t, log.Record(context.Background(), nil))
}

func TestDeliveryLogRecordPutFailure(t *testing.T) {
	mock := &mockDynamo{putErr: errors.New("throttled")}
	log := NewDeliveryLog(mock, "notification_deliveries", nil)

	err := log.Record(context.Background(), &Delivery{Status: DeliveryFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist delivery")
}

func TestDeliveryLogGet(t *testing.T) {
	item, err := attributevalue.MarshalMap(&Delivery{
		DeliveryID:    "del-1",
		EventID:       "evt-1",
		AppointmentID: "appt-1",
		Channel:       "email",
		Recipient:     "doc@clinic.example",
		Status:        DeliveryFailed,
		ErrorMessage:  "mailbox full",
	})
	require.NoError(t, err)

	mock := &mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item}}
	log := NewDeliveryLog(mock, "notification_deliveries", nil)

	d, err := log.Get(context.Background(), "del-1")
	require.NoError(t, err)
	assert.Equal(t, "del-1", d.DeliveryID)
	assert.Equal(t, DeliveryFailed, d.Status)
	assert.Equal(t, "mailbox full", d.ErrorMessage)
}

func TestDeliveryLogGetNotFound(t *testing.T) {
	log := NewDeliveryLog(&mockDynamo{}, "notification_deliveries", nil)

	_, err := log.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
}
