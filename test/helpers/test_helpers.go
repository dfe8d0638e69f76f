package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/internal/repository"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"github.com/afrisend/comms-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.AccountEntity{},
		&repository.SenderIdentityEntity{},
		&repository.MessageEntity{},
		&repository.TransactionEntity{},
		&repository.DeliveryReportEntity{},
		&repository.ProviderEntity{},
		&repository.RateEntity{},
		&repository.OTPEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per call; the adapter caches by name.
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestAccount(t *testing.T, db *pg.DB, account model.Account) *model.Account {
	ctx := context.Background()
	created, err := repository.NewAccountRepository(db).Create(ctx, &account)
	require.NoError(t, err)
	return created
}

func CreateTestSender(t *testing.T, db *pg.DB, sender *model.SenderIdentity) *model.SenderIdentity {
	ctx := context.Background()
	created, err := repository.NewSenderRepository(db).Create(ctx, sender)
	require.NoError(t, err)
	return created
}

func CreateTestProvider(t *testing.T, db *pg.DB, provider model.Provider) *model.Provider {
	ctx := context.Background()
	created, err := repository.NewProviderRepository(db).Create(ctx, &provider)
	require.NoError(t, err)
	return created
}

func CreateTestRate(t *testing.T, db *pg.DB, rate *model.PricingRate) *model.PricingRate {
	ctx := context.Background()
	created, err := repository.NewRateRepository(db).Create(ctx, rate)
	require.NoError(t, err)
	return created
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomAPIKey() string {
	return "test-api-key-" + time.Now().Format("20060102150405.000000000")
}

func Ptr[T any](v T) *T {
	return &v
}
