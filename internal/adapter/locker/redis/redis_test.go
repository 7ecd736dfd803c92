package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type URLLockerTestSuite struct {
	suite.Suite
	client *redis.Client
}

func (suite *URLLockerTestSuite) SetupSuite() {
	if testing.Short() {
		suite.T().Skip("Skipping redis locker tests in short mode")
	}

	ctx := context.Background()

	redisCont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		suite.T().Fatalf("Failed to start redis container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := redisCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := redisCont.Endpoint(ctx, "")
	if err != nil {
		suite.T().Fatalf("Failed to get container endpoint: %v", err)
	}

	suite.client = redis.NewClient(&redis.Options{Addr: endpoint})
}

func (suite *URLLockerTestSuite) TearDownSuite() {
	if suite.client != nil {
		suite.client.Close()
	}
}

func (suite *URLLockerTestSuite) SetupSubTest() {
	suite.Require().NoError(suite.client.FlushDB(context.Background()).Err())
}

func (suite *URLLockerTestSuite) TestLock() {
	suite.Run("keys are removed on unlock", func() {
		l := NewURLLocker(suite.client, WithPrefix("test:"))

		unlock, err := l.Lock(context.Background(), "https://b.example.com", "https://a.example.com")
		suite.Require().NoError(err)

		n, err := suite.client.Exists(context.Background(), "test:https://a.example.com", "test:https://b.example.com").Result()
		suite.NoError(err)
		suite.EqualValues(2, n)

		unlock()

		n, err = suite.client.Exists(context.Background(), "test:https://a.example.com", "test:https://b.example.com").Result()
		suite.NoError(err)
		suite.Zero(n)
	})

	suite.Run("serializes the same key", func() {
		l := NewURLLocker(suite.client, WithRetryInterval(time.Millisecond))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			inside  int
			maxSeen int
		)

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				unlock, err := l.Lock(context.Background(), "https://example.com")
				if err != nil {
					return
				}
				defer unlock()

				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
			}()
		}

		wg.Wait()

		suite.Equal(1, maxSeen)
	})

	suite.Run("context done while waiting", func() {
		l := NewURLLocker(suite.client)

		unlock, err := l.Lock(context.Background(), "https://b.example.com")
		suite.Require().NoError(err)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err = l.Lock(ctx, "https://a.example.com", "https://b.example.com")
		suite.ErrorIs(err, context.DeadlineExceeded)

		n, err := suite.client.Exists(context.Background(), DefaultPrefix+"https://a.example.com").Result()
		suite.NoError(err)
		suite.Zero(n)
	})

	suite.Run("unlock does not free a foreign lock", func() {
		l := NewURLLocker(suite.client, WithTTL(50*time.Millisecond))

		unlock, err := l.Lock(context.Background(), "https://example.com")
		suite.Require().NoError(err)

		time.Sleep(100 * time.Millisecond)

		other, err := NewURLLocker(suite.client).Lock(context.Background(), "https://example.com")
		suite.Require().NoError(err)
		defer other()

		unlock()

		n, err := suite.client.Exists(context.Background(), DefaultPrefix+"https://example.com").Result()
		suite.NoError(err)
		suite.EqualValues(1, n)
	})
}

func TestURLLocker(t *testing.T) {
	suite.Run(t, new(URLLockerTestSuite))
}
