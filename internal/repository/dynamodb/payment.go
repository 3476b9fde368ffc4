package dynamodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rentwise/rentwise/internal/config"
	domainPayment "github.com/rentwise/rentwise/internal/domain/payment"
	ddb "github.com/rentwise/rentwise/internal/dynamodb"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/sentry"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// Global secondary indexes on the payments table, both ranged on created_at
	TenantIndexName   = "tenant_id-created_at-index"
	LandlordIndexName = "landlord_id-created_at-index"

	// sortableTimeLayout keeps created_at lexicographically ordered
	sortableTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// paymentItem is the stored shape of a payment. Amounts are kept as decimal strings.
type paymentItem struct {
	ID                    string     `dynamodbav:"id"`
	TenantID              string     `dynamodbav:"tenant_id"`
	LandlordID            string     `dynamodbav:"landlord_id"`
	PropertyID            string     `dynamodbav:"property_id"`
	LeaseID               *string    `dynamodbav:"lease_id,omitempty"`
	TotalAmount           string     `dynamodbav:"total_amount"`
	RentAmount            string     `dynamodbav:"rent_amount"`
	UtilitiesAmount       string     `dynamodbav:"utilities_amount"`
	DepositAmount         string     `dynamodbav:"deposit_amount"`
	Currency              string     `dynamodbav:"currency"`
	Period                string     `dynamodbav:"period"`
	Description           string     `dynamodbav:"description,omitempty"`
	StripePaymentIntentID *string    `dynamodbav:"stripe_payment_intent_id,omitempty"`
	StripeChargeID        *string    `dynamodbav:"stripe_charge_id,omitempty"`
	Status                string     `dynamodbav:"status"`
	IsFirstPayment        bool       `dynamodbav:"is_first_payment"`
	FailureReason         *string    `dynamodbav:"failure_reason,omitempty"`
	PaidAt                *time.Time `dynamodbav:"paid_at,omitempty"`
	CancelledAt           *time.Time `dynamodbav:"cancelled_at,omitempty"`
	CreatedAt             string     `dynamodbav:"created_at"`
	UpdatedAt             time.Time  `dynamodbav:"updated_at"`
	CreatedBy             string     `dynamodbav:"created_by,omitempty"`
}

func toPaymentItem(p *domainPayment.Payment) *paymentItem {
	return &paymentItem{
		ID:                    p.ID,
		TenantID:              p.TenantID,
		LandlordID:            p.LandlordID,
		PropertyID:            p.PropertyID,
		LeaseID:               p.LeaseID,
		TotalAmount:           p.TotalAmount.String(),
		RentAmount:            p.RentAmount.String(),
		UtilitiesAmount:       p.UtilitiesAmount.String(),
		DepositAmount:         p.DepositAmount.String(),
		Currency:              p.Currency,
		Period:                p.Period,
		Description:           p.Description,
		StripePaymentIntentID: p.StripePaymentIntentID,
		StripeChargeID:        p.StripeChargeID,
		Status:                string(p.Status),
		IsFirstPayment:        p.IsFirstPayment,
		FailureReason:         p.FailureReason,
		PaidAt:                p.PaidAt,
		CancelledAt:           p.CancelledAt,
		CreatedAt:             p.CreatedAt.UTC().Format(sortableTimeLayout),
		UpdatedAt:             p.UpdatedAt.UTC(),
		CreatedBy:             p.CreatedBy,
	}
}

func (i *paymentItem) toDomain() (*domainPayment.Payment, error) {
	createdAt, err := time.Parse(sortableTimeLayout, i.CreatedAt)
	if err != nil {
		return nil, err
	}

	amounts := make([]decimal.Decimal, 4)
	for idx, raw := range []string{i.TotalAmount, i.RentAmount, i.UtilitiesAmount, i.DepositAmount} {
		if raw == "" {
			amounts[idx] = decimal.Zero
			continue
		}
		if amounts[idx], err = decimal.NewFromString(raw); err != nil {
			return nil, err
		}
	}

	return &domainPayment.Payment{
		ID:                    i.ID,
		TenantID:              i.TenantID,
		LandlordID:            i.LandlordID,
		PropertyID:            i.PropertyID,
		LeaseID:               i.LeaseID,
		TotalAmount:           amounts[0],
		RentAmount:            amounts[1],
		UtilitiesAmount:       amounts[2],
		DepositAmount:         amounts[3],
		Currency:              i.Currency,
		Period:                i.Period,
		Description:           i.Description,
		StripePaymentIntentID: i.StripePaymentIntentID,
		StripeChargeID:        i.StripeChargeID,
		Status:                types.PaymentStatus(i.Status),
		IsFirstPayment:        i.IsFirstPayment,
		FailureReason:         i.FailureReason,
		PaidAt:                i.PaidAt,
		CancelledAt:           i.CancelledAt,
		CreatedAt:             createdAt,
		UpdatedAt:             i.UpdatedAt,
		CreatedBy:             i.CreatedBy,
	}, nil
}

type paymentRepository struct {
	db        ddb.API
	tableName string
	log       *logger.Logger
	sentry    *sentry.Service
}

func NewPaymentRepository(client *ddb.Client, cfg *config.Configuration, log *logger.Logger, sentrySvc *sentry.Service) domainPayment.Repository {
	return &paymentRepository{
		db:        client.DB(),
		tableName: cfg.DynamoDB.PaymentTableName,
		log:       log,
		sentry:    sentrySvc,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *domainPayment.Payment) error {
	span, ctx := r.sentry.StartDBSpan(ctx, "payment.create", map[string]interface{}{
		"payment_id": p.ID,
	})
	defer sentry.FinishSpan(span)

	r.log.Debugw("creating payment",
		"payment_id", p.ID,
		"tenant_id", p.TenantID,
		"property_id", p.PropertyID,
		"period", p.Period,
	)

	item, err := attributevalue.MarshalMap(toPaymentItem(p))
	if err != nil {
		sentry.SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			Mark(ierr.ErrDatabase)
	}

	_, err = r.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		sentry.SetSpanError(span, err)
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ierr.WithError(err).
				WithHint("Payment already exists").
				WithReportableDetails(map[string]interface{}{
					"payment_id": p.ID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			WithReportableDetails(map[string]interface{}{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*domainPayment.Payment, error) {
	span, ctx := r.sentry.StartDBSpan(ctx, "payment.get", map[string]interface{}{
		"payment_id": id,
	})
	defer sentry.FinishSpan(span)

	out, err := r.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		sentry.SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to retrieve payment").
			WithReportableDetails(map[string]interface{}{
				"payment_id": id,
			}).
			Mark(ierr.ErrDatabase)
	}

	if len(out.Item) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHint("Payment not found").
			WithReportableDetails(map[string]interface{}{
				"payment_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}

	return r.decode(out.Item)
}

func (r *paymentRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domainPayment.Payment, error) {
	return r.queryIndex(ctx, TenantIndexName, "tenant_id", tenantID, nil)
}

func (r *paymentRepository) ListByLandlord(ctx context.Context, landlordID string) ([]*domainPayment.Payment, error) {
	return r.queryIndex(ctx, LandlordIndexName, "landlord_id", landlordID, nil)
}

func (r *paymentRepository) ListByTenantAndProperty(ctx context.Context, tenantID, propertyID string) ([]*domainPayment.Payment, error) {
	return r.queryIndex(ctx, TenantIndexName, "tenant_id", tenantID, &queryFilter{
		expression: "property_id = :property_id",
		values: map[string]ddbtypes.AttributeValue{
			":property_id": &ddbtypes.AttributeValueMemberS{Value: propertyID},
		},
	})
}

func (r *paymentRepository) FindActiveForPeriod(ctx context.Context, tenantID, propertyID, period string) (*domainPayment.Payment, error) {
	payments, err := r.queryIndex(ctx, TenantIndexName, "tenant_id", tenantID, &queryFilter{
		expression: "property_id = :property_id AND #period = :period AND #status <> :cancelled",
		names: map[string]string{
			"#period": "period",
			"#status": "status",
		},
		values: map[string]ddbtypes.AttributeValue{
			":property_id": &ddbtypes.AttributeValueMemberS{Value: propertyID},
			":period":      &ddbtypes.AttributeValueMemberS{Value: period},
			":cancelled":   &ddbtypes.AttributeValueMemberS{Value: string(types.PaymentStatusCancelled)},
		},
	})
	if err != nil {
		return nil, err
	}

	if len(payments) == 0 {
		return nil, ierr.NewError("no active payment for period").
			WithHint("Payment not found").
			WithReportableDetails(map[string]interface{}{
				"tenant_id":   tenantID,
				"property_id": propertyID,
				"period":      period,
			}).
			Mark(ierr.ErrNotFound)
	}

	return payments[0], nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, update *domainPayment.StatusUpdate) error {
	span, ctx := r.sentry.StartDBSpan(ctx, "payment.update_status", map[string]interface{}{
		"payment_id": id,
		"status":     update.Status,
	})
	defer sentry.FinishSpan(span)

	input := buildStatusUpdateInput(r.tableName, id, update, time.Now().UTC())

	r.log.Debugw("updating payment status",
		"payment_id", id,
		"status", update.Status,
		"expected_status", update.ExpectedStatus,
	)

	_, err := r.db.UpdateItem(ctx, input)
	if err != nil {
		sentry.SetSpanError(span, err)
		return r.mapConditionalError(err, id, update.ExpectedStatus)
	}
	return nil
}

func (r *paymentRepository) SetPaymentIntent(ctx context.Context, id string, intentID string) error {
	span, ctx := r.sentry.StartDBSpan(ctx, "payment.set_payment_intent", map[string]interface{}{
		"payment_id":        id,
		"payment_intent_id": intentID,
	})
	defer sentry.FinishSpan(span)

	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}

	_, err = r.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 idKey(id),
		UpdateExpression:                    aws.String("SET stripe_payment_intent_id = :intent_id, updated_at = :updated_at"),
		ConditionExpression:                 aws.String("attribute_exists(id)"),
		ReturnValuesOnConditionCheckFailure: ddbtypes.ReturnValuesOnConditionCheckFailureAllOld,
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":intent_id":  &ddbtypes.AttributeValueMemberS{Value: intentID},
			":updated_at": now,
		},
	})
	if err != nil {
		sentry.SetSpanError(span, err)
		return r.mapConditionalError(err, id, "")
	}
	return nil
}

// buildStatusUpdateInput writes the status and any stamped fields in one
// UpdateItem. The item must exist and, when ExpectedStatus is set, still hold it.
func buildStatusUpdateInput(table, id string, update *domainPayment.StatusUpdate, now time.Time) *dynamodb.UpdateItemInput {
	sets := []string{"#status = :status", "updated_at = :updated_at"}
	values := map[string]ddbtypes.AttributeValue{
		":status":     &ddbtypes.AttributeValueMemberS{Value: string(update.Status)},
		":updated_at": &ddbtypes.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}

	if update.StripeChargeID != nil {
		sets = append(sets, "stripe_charge_id = :charge_id")
		values[":charge_id"] = &ddbtypes.AttributeValueMemberS{Value: *update.StripeChargeID}
	}
	if update.FailureReason != nil {
		sets = append(sets, "failure_reason = :failure_reason")
		values[":failure_reason"] = &ddbtypes.AttributeValueMemberS{Value: *update.FailureReason}
	}
	if update.PaidAt != nil {
		sets = append(sets, "paid_at = :paid_at")
		values[":paid_at"] = &ddbtypes.AttributeValueMemberS{Value: update.PaidAt.UTC().Format(time.RFC3339Nano)}
	}
	if update.CancelledAt != nil {
		sets = append(sets, "cancelled_at = :cancelled_at")
		values[":cancelled_at"] = &ddbtypes.AttributeValueMemberS{Value: update.CancelledAt.UTC().Format(time.RFC3339Nano)}
	}

	condition := "attribute_exists(id)"
	if update.ExpectedStatus != "" {
		condition += " AND #status = :expected_status"
		values[":expected_status"] = &ddbtypes.AttributeValueMemberS{Value: string(update.ExpectedStatus)}
	}

	return &dynamodb.UpdateItemInput{
		TableName:                           aws.String(table),
		Key:                                 idKey(id),
		UpdateExpression:                    aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:                 aws.String(condition),
		ReturnValuesOnConditionCheckFailure: ddbtypes.ReturnValuesOnConditionCheckFailureAllOld,
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
	}
}

// mapConditionalError tells a missing item apart from a stale status
// using the old item returned with the failed condition.
func (r *paymentRepository) mapConditionalError(err error, id string, expected types.PaymentStatus) error {
	var ccf *ddbtypes.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return ierr.WithError(err).
			WithHint("Failed to update payment").
			WithReportableDetails(map[string]interface{}{
				"payment_id": id,
			}).
			Mark(ierr.ErrDatabase)
	}

	if len(ccf.Item) == 0 {
		return ierr.WithError(err).
			WithHint("Payment not found").
			WithReportableDetails(map[string]interface{}{
				"payment_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}

	return ierr.WithError(err).
		WithHint("Payment was modified concurrently").
		WithReportableDetails(map[string]interface{}{
			"payment_id":      id,
			"expected_status": expected,
		}).
		Mark(ierr.ErrVersionConflict)
}

type queryFilter struct {
	expression string
	names      map[string]string
	values     map[string]ddbtypes.AttributeValue
}

// queryIndex reads every page of a created_at ranged index, newest first
func (r *paymentRepository) queryIndex(ctx context.Context, index, hashKey, hashValue string, filter *queryFilter) ([]*domainPayment.Payment, error) {
	span, ctx := r.sentry.StartDBSpan(ctx, "payment.query", map[string]interface{}{
		"index":  index,
		hashKey:  hashValue,
		"filter": filter != nil,
	})
	defer sentry.FinishSpan(span)

	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String(hashKey + " = :hash"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":hash": &ddbtypes.AttributeValueMemberS{Value: hashValue},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if filter != nil {
		input.FilterExpression = aws.String(filter.expression)
		for k, v := range filter.values {
			input.ExpressionAttributeValues[k] = v
		}
		if len(filter.names) > 0 {
			input.ExpressionAttributeNames = filter.names
		}
	}

	payments := make([]*domainPayment.Payment, 0)
	paginator := dynamodb.NewQueryPaginator(r.db, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			sentry.SetSpanError(span, err)
			return nil, ierr.WithError(err).
				WithHint("Failed to list payments").
				WithReportableDetails(map[string]interface{}{
					"index": index,
				}).
				Mark(ierr.ErrDatabase)
		}

		for _, raw := range page.Items {
			p, err := r.decode(raw)
			if err != nil {
				return nil, err
			}
			payments = append(payments, p)
		}
	}

	return payments, nil
}

func (r *paymentRepository) decode(raw map[string]ddbtypes.AttributeValue) (*domainPayment.Payment, error) {
	var item paymentItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode payment").
			Mark(ierr.ErrDatabase)
	}

	p, err := item.toDomain()
	if err != nil {
		r.log.Errorw("corrupt payment item", "payment_id", item.ID, "error", err)
		return nil, ierr.WithError(err).
			WithHint("Failed to decode payment").
			WithReportableDetails(map[string]interface{}{
				"payment_id": item.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return p, nil
}

func idKey(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"id": &ddbtypes.AttributeValueMemberS{Value: id},
	}
}
