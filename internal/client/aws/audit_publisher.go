package aws

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cyphera/cyphera-notify/internal/audit"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AuditEventType is the EventType attribute of published audit messages.
const AuditEventType = "bulk_notification.sent"

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AuditPublisher implements audit.Store by publishing each record to an SQS
// queue for downstream consumers.
type AuditPublisher struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

// NewAuditPublisher creates a publisher sending to queueURL.
func NewAuditPublisher(cfg aws.Config, queueURL string, log *zap.Logger) *AuditPublisher {
	return &AuditPublisher{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		logger:   logger.OrNop(log),
	}
}

// Append implements audit.Store.
func (p *AuditPublisher) Append(ctx context.Context, record audit.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit record")
	}

	attributes := map[string]types.MessageAttributeValue{
		"EventType": {
			StringValue: aws.String(AuditEventType),
			DataType:    aws.String("String"),
		},
		"SentBy": {
			StringValue: aws.String(record.SentBy),
			DataType:    aws.String("String"),
		},
		"FailedCount": {
			StringValue: aws.String(strconv.Itoa(record.FailedCount)),
			DataType:    aws.String("Number"),
		},
	}
	if record.CorrelationID != "" {
		attributes["CorrelationID"] = types.MessageAttributeValue{
			StringValue: aws.String(record.CorrelationID),
			DataType:    aws.String("String"),
		}
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		return errors.Wrap(err, "failed to send audit message to SQS")
	}

	p.logger.Debug("Audit record published",
		zap.String("audit_id", record.ID),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
