// Package firehose writes record batches to Kinesis Data Firehose delivery streams.
package firehose

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"github.com/sirupsen/logrus"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
)

// MaxBatchRecords is the PutRecordBatch record limit
const MaxBatchRecords = 500

// ErrPartialFailure means Firehose accepted the call but rejected some records.
// The whole batch is reported as failed and offered again.
var ErrPartialFailure = errors.New("firehose rejected part of the batch")

// API is the subset of the Firehose client the sink uses
type API interface {
	PutRecordBatch(ctx context.Context, in *firehose.PutRecordBatchInput, optFns ...func(*firehose.Options)) (*firehose.PutRecordBatchOutput, error)
}

// Sink calls PutRecordBatch once per batch; the delivery stream is the tag's stream name
type Sink struct {
	api API
	log *log.Logger
}

// New creates a sink from the default AWS credential chain
func New(ctx context.Context, cfg *config.FirehoseConfig, logger *log.Logger) (*Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := firehose.NewFromConfig(awsCfg, func(o *firehose.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(client, logger), nil
}

// NewWithAPI creates a sink over an existing client
func NewWithAPI(api API, logger *log.Logger) *Sink {
	return &Sink{api: api, log: logger}
}

// PutBatch delivers records in calls of at most MaxBatchRecords. Empty
// batches are not sent: the service rejects calls without records. A batch
// that grew past the limit while retained is split; a failing chunk fails the
// batch and earlier chunks are delivered again on retry.
func (s *Sink) PutBatch(ctx context.Context, streamName string, records []message.Record) error {
	for start := 0; start < len(records); start += MaxBatchRecords {
		end := start + MaxBatchRecords
		if end > len(records) {
			end = len(records)
		}
		if err := s.put(ctx, streamName, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) put(ctx context.Context, streamName string, records []message.Record) error {
	entries := make([]types.Record, len(records))
	for i, rec := range records {
		entries[i] = types.Record{Data: []byte(rec.Data)}
	}

	out, err := s.api.PutRecordBatch(ctx, &firehose.PutRecordBatchInput{
		DeliveryStreamName: aws.String(streamName),
		Records:            entries,
	})
	if err != nil {
		return fmt.Errorf("put record batch to %s: %w", streamName, err)
	}

	if failed := aws.ToInt32(out.FailedPutCount); failed > 0 {
		s.log.WarnWithFields(logrus.Fields{
			"stream":     streamName,
			"failed":     failed,
			"records":    len(records),
			"first_code": firstErrorCode(out.RequestResponses),
		}, "Firehose rejected records")
		return fmt.Errorf("%w: %d of %d records to %s", ErrPartialFailure, failed, len(records), streamName)
	}
	return nil
}

func firstErrorCode(entries []types.PutRecordBatchResponseEntry) string {
	for _, e := range entries {
		if code := aws.ToString(e.ErrorCode); code != "" {
			return code
		}
	}
	return ""
}

// Close is a no-op; the SDK client has nothing to release
func (s *Sink) Close() error {
	return nil
}
