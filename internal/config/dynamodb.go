package config

// DynamoDBConfig holds configuration for the DynamoDB document store
type DynamoDBConfig struct {
	Region string `mapstructure:"region" validate:"required"`
	// Endpoint overrides the AWS endpoint, e.g. for dynamodb-local
	Endpoint          string `mapstructure:"endpoint"`
	PaymentTableName  string `mapstructure:"payment_table_name"`
	UserTableName     string `mapstructure:"user_table_name"`
	PropertyTableName string `mapstructure:"property_table_name"`
	LeaseTableName    string `mapstructure:"lease_table_name"`
}
