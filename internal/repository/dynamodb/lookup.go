package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/domain/lease"
	"github.com/rentwise/rentwise/internal/domain/property"
	"github.com/rentwise/rentwise/internal/domain/user"
	ddb "github.com/rentwise/rentwise/internal/dynamodb"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/sentry"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/shopspring/decimal"
)

// getItem loads one item by id from a collection owned by another service
func getItem[T any](ctx context.Context, db ddb.API, sentrySvc *sentry.Service, table, entity, id string) (*T, error) {
	span, ctx := sentrySvc.StartDBSpan(ctx, entity+".get", map[string]interface{}{
		"id": id,
	})
	defer sentry.FinishSpan(span)

	out, err := db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       idKey(id),
	})
	if err != nil {
		sentry.SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHintf("Failed to retrieve %s", entity).
			WithReportableDetails(map[string]interface{}{
				entity + "_id": id,
			}).
			Mark(ierr.ErrDatabase)
	}

	if len(out.Item) == 0 {
		return nil, ierr.NewErrorf("%s not found", entity).
			WithHintf("%s not found", entity).
			WithReportableDetails(map[string]interface{}{
				entity + "_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}

	var item T
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to decode %s", entity).
			Mark(ierr.ErrDatabase)
	}
	return &item, nil
}

type userItem struct {
	ID    string `dynamodbav:"id"`
	Name  string `dynamodbav:"name"`
	Email string `dynamodbav:"email"`
	Role  string `dynamodbav:"role"`
}

type userRepository struct {
	db        ddb.API
	tableName string
	log       *logger.Logger
	sentry    *sentry.Service
}

func NewUserRepository(client *ddb.Client, cfg *config.Configuration, log *logger.Logger, sentrySvc *sentry.Service) user.Repository {
	return &userRepository{
		db:        client.DB(),
		tableName: cfg.DynamoDB.UserTableName,
		log:       log,
		sentry:    sentrySvc,
	}
}

func (r *userRepository) Get(ctx context.Context, id string) (*user.User, error) {
	item, err := getItem[userItem](ctx, r.db, r.sentry, r.tableName, "user", id)
	if err != nil {
		return nil, err
	}
	return &user.User{
		ID:    item.ID,
		Name:  item.Name,
		Email: item.Email,
		Role:  types.UserRole(item.Role),
	}, nil
}

type propertyItem struct {
	ID         string `dynamodbav:"id"`
	LandlordID string `dynamodbav:"landlord_id"`
	Title      string `dynamodbav:"title"`
	Address    string `dynamodbav:"address"`
}

type propertyRepository struct {
	db        ddb.API
	tableName string
	log       *logger.Logger
	sentry    *sentry.Service
}

func NewPropertyRepository(client *ddb.Client, cfg *config.Configuration, log *logger.Logger, sentrySvc *sentry.Service) property.Repository {
	return &propertyRepository{
		db:        client.DB(),
		tableName: cfg.DynamoDB.PropertyTableName,
		log:       log,
		sentry:    sentrySvc,
	}
}

func (r *propertyRepository) Get(ctx context.Context, id string) (*property.Property, error) {
	item, err := getItem[propertyItem](ctx, r.db, r.sentry, r.tableName, "property", id)
	if err != nil {
		return nil, err
	}
	return &property.Property{
		ID:         item.ID,
		LandlordID: item.LandlordID,
		Title:      item.Title,
		Address:    item.Address,
	}, nil
}

type leaseItem struct {
	ID          string `dynamodbav:"id"`
	TenantID    string `dynamodbav:"tenant_id"`
	LandlordID  string `dynamodbav:"landlord_id"`
	PropertyID  string `dynamodbav:"property_id"`
	MonthlyRent string `dynamodbav:"monthly_rent"`
	Status      string `dynamodbav:"status"`
}

type leaseRepository struct {
	db        ddb.API
	tableName string
	log       *logger.Logger
	sentry    *sentry.Service
}

func NewLeaseRepository(client *ddb.Client, cfg *config.Configuration, log *logger.Logger, sentrySvc *sentry.Service) lease.Repository {
	return &leaseRepository{
		db:        client.DB(),
		tableName: cfg.DynamoDB.LeaseTableName,
		log:       log,
		sentry:    sentrySvc,
	}
}

func (r *leaseRepository) Get(ctx context.Context, id string) (*lease.Lease, error) {
	item, err := getItem[leaseItem](ctx, r.db, r.sentry, r.tableName, "lease", id)
	if err != nil {
		return nil, err
	}

	rent := decimal.Zero
	if item.MonthlyRent != "" {
		if rent, err = decimal.NewFromString(item.MonthlyRent); err != nil {
			r.log.Warnw("lease has unparseable monthly rent", "lease_id", id, "monthly_rent", item.MonthlyRent)
			rent = decimal.Zero
		}
	}

	return &lease.Lease{
		ID:          item.ID,
		TenantID:    item.TenantID,
		LandlordID:  item.LandlordID,
		PropertyID:  item.PropertyID,
		MonthlyRent: rent,
		Status:      item.Status,
	}, nil
}
