package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

const samplePayload = `{
	"symbol": "AAPL",
	"rows": [
		{"date": "2024-03-01", "open": 179.55, "close": 180.75},
		{"date": "2024-01-02", "open": 187.15, "close": 185.64},
		{"date": "2024-06-28", "open": 215.77, "close": 210.62}
	]
}`

func TestAPIClient_Call(t *testing.T) {
	var gotPath, gotSymbol, gotSince, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSymbol = r.URL.Query().Get("symbol")
		gotSince = r.URL.Query().Get("since")
		gotKey = r.Header.Get("X-API-Key")
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewAPIClient(srv.URL, "secret-key", 0)
	body, result, err := c.Call(context.Background(), Request{
		Target: "time_series", Symbol: "AAPL", Since: &since,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/time_series", gotPath)
	assert.Equal(t, "AAPL", gotSymbol)
	assert.Equal(t, "2024-01-01", gotSince)
	assert.Equal(t, "secret-key", gotKey)

	assert.JSONEq(t, samplePayload, string(body))
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, "2024-01-02", result.Observed.First.Format(types.DateLayout))
	assert.Equal(t, "2024-06-28", result.Observed.Last.Format(types.DateLayout))
}

func TestAPIClient_Classification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category types.FailureCategory
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", types.FailureTransient},
		{"server error", http.StatusBadGateway, "bad gateway", types.FailureTransient},
		{"unknown symbol", http.StatusNotFound, "no such symbol", types.FailurePermanent},
		{"unauthorized", http.StatusUnauthorized, "bad key", types.FailurePermanent},
		{"malformed body", http.StatusOK, "<html>oops</html>", types.FailurePermanent},
		{"empty rows", http.StatusOK, `{"symbol":"X","rows":[]}`, types.FailurePermanent},
		{"bad row date", http.StatusOK, `{"symbol":"X","rows":[{"date":"yesterday"}]}`, types.FailurePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewAPIClient(srv.URL, "k", 0)
			_, _, err := c.Call(context.Background(), Request{Target: "time_series", Symbol: "X"})
			require.Error(t, err)
			assert.Equal(t, tt.category, CategoryOf(err))
		})
	}
}

func TestAPIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "k", 20*time.Millisecond)
	_, _, err := c.Call(context.Background(), Request{Target: "time_series", Symbol: "SLOW"})
	require.Error(t, err)
	assert.Equal(t, types.FailureTimeout, CategoryOf(err))
}

func TestCategoryOf_Unclassified(t *testing.T) {
	assert.Equal(t, types.FailureTransient, CategoryOf(errors.New("who knows")))
	assert.Equal(t, types.FailureTimeout, CategoryOf(context.DeadlineExceeded))
}

type mockS3 struct {
	putFn func(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *mockS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.putFn(ctx, input, opts...)
}

func TestStager_Stage(t *testing.T) {
	var gotBucket, gotKey string
	mock := &mockS3{putFn: func(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		gotBucket = *input.Bucket
		gotKey = *input.Key
		return &s3.PutObjectOutput{}, nil
	}}

	stager, err := NewStager("staging-bucket", "raw/", WithS3Client(mock))
	require.NoError(t, err)

	loc, err := stager.Stage(context.Background(), Request{Target: "time_series", Symbol: "AAPL"}, []byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "staging-bucket", gotBucket)
	assert.Regexp(t, `^raw/time_series/AAPL/\d+\.json$`, gotKey)
	assert.Equal(t, "s3://staging-bucket/"+gotKey, loc)
}

func TestStager_PutFailureIsTransient(t *testing.T) {
	mock := &mockS3{putFn: func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("throttled")
	}}
	stager, err := NewStager("b", "", WithS3Client(mock))
	require.NoError(t, err)

	_, err = stager.Stage(context.Background(), Request{Target: "t", Symbol: "S"}, []byte("{}"))
	require.Error(t, err)
	assert.Equal(t, types.FailureTransient, CategoryOf(err))
}

func TestNewStager_RequiresBucket(t *testing.T) {
	_, err := NewStager("", "raw/")
	assert.Error(t, err)
}

type mockSQS struct {
	sendFn func(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

func (m *mockSQS) SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return m.sendFn(ctx, input, opts...)
}

func TestNotifier_Notify(t *testing.T) {
	var gotQueue, gotBody string
	mock := &mockSQS{sendFn: func(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
		gotQueue = *input.QueueUrl
		gotBody = *input.MessageBody
		return &sqs.SendMessageOutput{}, nil
	}}

	n, err := NewNotifier("https://sqs.us-east-1.amazonaws.com/123/loader", WithSQSClient(mock))
	require.NoError(t, err)

	err = n.Notify(context.Background(), LoadNotification{
		Target: "time_series", Symbol: "AAPL",
		Location: "s3://b/k.json", Rows: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/loader", gotQueue)
	assert.Contains(t, gotBody, `"location":"s3://b/k.json"`)
	assert.Contains(t, gotBody, `"rows":3`)
}

type mockSecrets struct {
	getFn func(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.getFn(ctx, input, opts...)
}

func TestResolveAPIKey_EnvWins(t *testing.T) {
	t.Setenv("FINTRADE_API_KEY", "from-env")

	key, err := ResolveAPIKey(context.Background(), types.FetchConfig{
		APIKeyEnv: "FINTRADE_API_KEY", APIKeySecret: "fintrade/api-key",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestResolveAPIKey_SecretFallback(t *testing.T) {
	secret := "from-secrets-manager"
	mock := &mockSecrets{getFn: func(_ context.Context, input *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
		assert.Equal(t, "fintrade/api-key", *input.SecretId)
		return &secretsmanager.GetSecretValueOutput{SecretString: &secret}, nil
	}}

	key, err := ResolveAPIKey(context.Background(), types.FetchConfig{
		APIKeyEnv: "FINTRADE_UNSET_KEY", APIKeySecret: "fintrade/api-key",
	}, mock)
	require.NoError(t, err)
	assert.Equal(t, "from-secrets-manager", key)
}

func TestResolveAPIKey_NothingConfigured(t *testing.T) {
	_, err := ResolveAPIKey(context.Background(), types.FetchConfig{APIKeyEnv: "FINTRADE_UNSET_KEY"}, nil)
	assert.Error(t, err)
}

func TestPipeline_StagesAndNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	s3Mock := &mockS3{putFn: func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return &s3.PutObjectOutput{}, nil
	}}
	stager, err := NewStager("bucket", "raw", WithS3Client(s3Mock))
	require.NoError(t, err)

	var note LoadNotification
	sqsMock := &mockSQS{sendFn: func(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
		require.NoError(t, json.Unmarshal([]byte(*input.MessageBody), &note))
		return &sqs.SendMessageOutput{}, nil
	}}
	notifier, err := NewNotifier("https://example/queue", WithSQSClient(sqsMock))
	require.NoError(t, err)

	p := &Pipeline{
		API:      NewAPIClient(srv.URL, "k", 0),
		Stager:   stager,
		Notifier: notifier,
	}

	result, err := p.Fetch(context.Background(), Request{Target: "time_series", Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.NotEmpty(t, result.Location)
	assert.Equal(t, result.Location, note.Location)
	assert.Equal(t, "AAPL", note.Symbol)
}

func TestPipeline_NilStagerSkipsAWS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	p := &Pipeline{API: NewAPIClient(srv.URL, "k", 0)}
	result, err := p.Fetch(context.Background(), Request{Target: "time_series", Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Empty(t, result.Location)
}
