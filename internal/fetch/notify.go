package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// SQSAPI is the subset of the SQS client used by Notifier.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// LoadNotification tells the downstream loader a staged object is ready.
type LoadNotification struct {
	Target   string          `json:"target"`
	Symbol   string          `json:"symbol"`
	Location string          `json:"location"`
	Rows     int             `json:"rows"`
	Observed types.DateRange `json:"observed"`
}

// Notifier publishes load notifications to the loader queue.
type Notifier struct {
	client   SQSAPI
	queueURL string
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithSQSClient sets a custom SQS client (useful for testing).
func WithSQSClient(c SQSAPI) NotifierOption {
	return func(n *Notifier) { n.client = c }
}

// NewNotifier creates an SQS notifier.
func NewNotifier(queueURL string, opts ...NotifierOption) (*Notifier, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("loader queue URL required")
	}
	n := &Notifier{queueURL: queueURL}
	for _, o := range opts {
		o(n)
	}
	if n.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		n.client = sqs.NewFromConfig(cfg)
	}
	return n, nil
}

// Notify publishes one load notification.
func (n *Notifier) Notify(ctx context.Context, note LoadNotification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return Permanent("marshal notification", err)
	}
	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(data)),
	})
	if err != nil {
		return Transient("send notification", err)
	}
	return nil
}
