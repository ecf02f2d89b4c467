package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kennydoit/fin-trade-extract/internal/store"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// casAttempts bounds the optimistic-concurrency retry loop on RecordSuccess.
const casAttempts = 3

// record is the DynamoDB item shape for one watermark row.
type record struct {
	PK                  string     `dynamodbav:"PK"`
	SK                  string     `dynamodbav:"SK"`
	Target              string     `dynamodbav:"target"`
	Symbol              string     `dynamodbav:"symbol"`
	Exchange            string     `dynamodbav:"exchange,omitempty"`
	AssetType           string     `dynamodbav:"asset_type,omitempty"`
	Eligibility         string     `dynamodbav:"eligibility"`
	DelistingDate       *time.Time `dynamodbav:"delisting_date,omitempty"`
	FirstObservedDate   *time.Time `dynamodbav:"first_observed_date,omitempty"`
	LastObservedDate    *time.Time `dynamodbav:"last_observed_date,omitempty"`
	LastSuccessAt       *time.Time `dynamodbav:"last_success_at,omitempty"`
	ConsecutiveFailures int        `dynamodbav:"consecutive_failures"`
	LastError           string     `dynamodbav:"last_error,omitempty"`
	CreatedAt           time.Time  `dynamodbav:"created_at"`
	UpdatedAt           time.Time  `dynamodbav:"updated_at"`
	Version             int64      `dynamodbav:"version"`
}

func toRecord(wm types.Watermark, version int64) record {
	return record{
		PK:                  watermarkPK(wm.Target),
		SK:                  symbolSK(wm.Symbol),
		Target:              wm.Target,
		Symbol:              wm.Symbol,
		Exchange:            wm.Exchange,
		AssetType:           wm.AssetType,
		Eligibility:         string(wm.Eligibility),
		DelistingDate:       wm.DelistingDate,
		FirstObservedDate:   wm.FirstObservedDate,
		LastObservedDate:    wm.LastObservedDate,
		LastSuccessAt:       wm.LastSuccessAt,
		ConsecutiveFailures: wm.ConsecutiveFailures,
		LastError:           wm.LastError,
		CreatedAt:           wm.CreatedAt,
		UpdatedAt:           wm.UpdatedAt,
		Version:             version,
	}
}

func (r record) toWatermark() types.Watermark {
	return types.Watermark{
		Target:              r.Target,
		Symbol:              r.Symbol,
		Exchange:            r.Exchange,
		AssetType:           r.AssetType,
		Eligibility:         types.Eligibility(r.Eligibility),
		DelistingDate:       r.DelistingDate,
		FirstObservedDate:   r.FirstObservedDate,
		LastObservedDate:    r.LastObservedDate,
		LastSuccessAt:       r.LastSuccessAt,
		ConsecutiveFailures: r.ConsecutiveFailures,
		LastError:           r.LastError,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func rowKey(target, symbol string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: watermarkPK(target)},
		"SK": &ddbtypes.AttributeValueMemberS{Value: symbolSK(symbol)},
	}
}

// Get returns the watermark for a tracked pair (strongly consistent read).
func (s *Store) Get(ctx context.Context, target, symbol string) (*types.Watermark, error) {
	rec, _, err := s.getRecord(ctx, target, symbol)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, store.ErrNotFound
	}
	wm := rec.toWatermark()
	return &wm, nil
}

func (s *Store) getRecord(ctx context.Context, target, symbol string) (*record, int64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key:            rowKey(target, symbol),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("reading watermark %s/%s: %w", target, symbol, err)
	}
	if out.Item == nil {
		return nil, 0, nil
	}
	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, 0, fmt.Errorf("decoding watermark %s/%s: %w", target, symbol, err)
	}
	return &rec, rec.Version, nil
}

// ListEligible queries the target partition and applies the shared evaluator.
func (s *Store) ListEligible(ctx context.Context, target string, policy types.Policy, opts store.ListOptions) (*types.EligibleSet, error) {
	rows, err := s.queryTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	return store.BuildEligibleSet(rows, policy, opts, time.Now()), nil
}

func (s *Store) queryTarget(ctx context.Context, target string) ([]types.Watermark, error) {
	var (
		rows    []types.Watermark
		lastKey map[string]ddbtypes.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk":     &ddbtypes.AttributeValueMemberS{Value: watermarkPK(target)},
				":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixSymbol},
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("querying watermarks for %s: %w", target, err)
		}
		var recs []record
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
			return nil, fmt.Errorf("decoding watermarks for %s: %w", target, err)
		}
		for _, rec := range recs {
			rows = append(rows, rec.toWatermark())
		}
		if out.LastEvaluatedKey == nil || len(out.LastEvaluatedKey) == 0 {
			return rows, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

// RecordSuccess applies the monotone range widening with a version CAS retry:
// the widening needs the current bounds, so it is read-modify-write guarded
// by a conditional put.
func (s *Store) RecordSuccess(ctx context.Context, target, symbol string, observed types.DateRange) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		rec, version, err := s.getRecord(ctx, target, symbol)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		var next record
		if rec == nil {
			next = toRecord(freshWatermark(target, symbol, now), 1)
		} else {
			next = *rec
			next.Version = version + 1
		}
		next.LastSuccessAt = &now
		next.ConsecutiveFailures = 0
		next.LastError = ""
		next.UpdatedAt = now
		if next.FirstObservedDate == nil || observed.First.Before(*next.FirstObservedDate) {
			first := observed.First
			next.FirstObservedDate = &first
		}
		if next.LastObservedDate == nil || observed.Last.After(*next.LastObservedDate) {
			last := observed.Last
			next.LastObservedDate = &last
		}

		ok, err := s.putVersioned(ctx, next, rec == nil, version)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		// Lost the race; re-read and widen again.
	}
	return fmt.Errorf("recording success for %s/%s: version conflict persisted after %d attempts", target, symbol, casAttempts)
}

func (s *Store) putVersioned(ctx context.Context, rec record, isNew bool, expectedVersion int64) (bool, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("encoding watermark %s/%s: %w", rec.Target, rec.Symbol, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if isNew {
		input.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{
			":expected": &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		}
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("writing watermark %s/%s: %w", rec.Target, rec.Symbol, err)
	}
	return true, nil
}

// RecordFailure increments the failure counter with an atomic ADD; no
// read-modify-write is needed because nothing depends on the current value.
func (s *Store) RecordFailure(ctx context.Context, target, symbol string, fetchErr error) error {
	msg := ""
	if fetchErr != nil {
		msg = types.TruncateError(fetchErr.Error())
	}
	now := time.Now().UTC()

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 rowKey(target, symbol),
		UpdateExpression:    aws.String("SET last_error = :err, updated_at = :now ADD consecutive_failures :one, version :one"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":err": &ddbtypes.AttributeValueMemberS{Value: msg},
			":now": &ddbtypes.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":one": &ddbtypes.AttributeValueMemberN{Value: "1"},
		},
	})
	if err == nil {
		return nil
	}
	if !isConditionalCheckFailed(err) {
		return fmt.Errorf("recording failure for %s/%s: %w", target, symbol, err)
	}

	// Row does not exist yet: outcomes must not be lost even when
	// registration raced the run, so create it with one failure.
	wm := freshWatermark(target, symbol, now)
	wm.ConsecutiveFailures = 1
	wm.LastError = msg
	ok, err := s.putVersioned(ctx, toRecord(wm, 1), true, 0)
	if err != nil {
		return err
	}
	if !ok {
		// Created concurrently after our conditional update; retry the ADD once.
		return s.RecordFailure(ctx, target, symbol, fetchErr)
	}
	return nil
}

// RegisterSymbols inserts missing rows and refreshes symbol lifecycle on
// existing ones.
func (s *Store) RegisterSymbols(ctx context.Context, target string, syms []types.Symbol) (int, error) {
	now := time.Now().UTC()
	created := 0

	for _, sym := range syms {
		wm := freshWatermark(target, sym.Symbol, now)
		wm.Exchange = sym.Exchange
		wm.AssetType = sym.AssetType
		wm.DelistingDate = sym.DelistingDate
		if sym.IsDelistedAsOf(now) {
			wm.Eligibility = types.Delisted
		}

		ok, err := s.putVersioned(ctx, toRecord(wm, 1), true, 0)
		if err != nil {
			return created, err
		}
		if ok {
			created++
			continue
		}
		if err := s.refreshLifecycle(ctx, target, sym, now); err != nil {
			return created, err
		}
	}
	return created, nil
}

// refreshLifecycle updates the denormalized symbol columns on an existing
// row. Eligibility only ever moves toward DELISTED here.
func (s *Store) refreshLifecycle(ctx context.Context, target string, sym types.Symbol, now time.Time) error {
	expr := "SET exchange = :ex, asset_type = :at, updated_at = :now ADD version :one"
	values := map[string]ddbtypes.AttributeValue{
		":ex":  &ddbtypes.AttributeValueMemberS{Value: sym.Exchange},
		":at":  &ddbtypes.AttributeValueMemberS{Value: sym.AssetType},
		":now": &ddbtypes.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		":one": &ddbtypes.AttributeValueMemberN{Value: "1"},
	}
	if sym.DelistingDate != nil {
		expr = "SET exchange = :ex, asset_type = :at, delisting_date = :dd, updated_at = :now ADD version :one"
		values[":dd"] = &ddbtypes.AttributeValueMemberS{Value: sym.DelistingDate.Format(time.RFC3339Nano)}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       rowKey(target, sym.Symbol),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: values,
	})
	if err != nil && !isConditionalCheckFailed(err) {
		return fmt.Errorf("refreshing lifecycle for %s/%s: %w", target, sym.Symbol, err)
	}

	if sym.IsDelistedAsOf(now) {
		return s.MarkDelisted(ctx, target, sym.Symbol)
	}
	return nil
}

// MarkDelisted sets the terminal eligibility on an existing row.
func (s *Store) MarkDelisted(ctx context.Context, target, symbol string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 rowKey(target, symbol),
		UpdateExpression:    aws.String("SET eligibility = :elig, updated_at = :now ADD version :one"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":elig": &ddbtypes.AttributeValueMemberS{Value: string(types.Delisted)},
			":now":  &ddbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
			":one":  &ddbtypes.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("marking %s/%s delisted: %w", target, symbol, err)
	}
	return nil
}

// ResetFailures clears a suspension (manual operator action).
func (s *Store) ResetFailures(ctx context.Context, target, symbol string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 rowKey(target, symbol),
		UpdateExpression:    aws.String("SET consecutive_failures = :zero, last_error = :empty, updated_at = :now ADD version :one"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":zero":  &ddbtypes.AttributeValueMemberN{Value: "0"},
			":empty": &ddbtypes.AttributeValueMemberS{Value: ""},
			":now":   &ddbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
			":one":   &ddbtypes.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("resetting failures for %s/%s: %w", target, symbol, err)
	}
	return nil
}

// Summary aggregates watermark state for one target.
func (s *Store) Summary(ctx context.Context, target string, policy types.Policy) (*types.StoreSummary, error) {
	rows, err := s.queryTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	return store.Summarize(target, rows, policy), nil
}

func freshWatermark(target, symbol string, now time.Time) types.Watermark {
	return types.Watermark{
		Target:      target,
		Symbol:      symbol,
		Eligibility: types.Eligible,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
