package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/observability"
)

// Config holds the Kafka connection settings.
type Config struct {
	Brokers     []string
	Group       string
	TopicPrefix string
	ClientID    string
}

// Consumer is the part of *kgo.Client the runner reads from.
type Consumer interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// Producer is the part of *kgo.Client the runner writes to.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Handler processes one command into one result.
type Handler interface {
	Process(ctx context.Context, cmd core.AnalysisCommand) (core.ResultKey, core.AnalysisResult, error)
}

// NewClient creates a consumer-group client for the component topic with
// manual offset commits.
func NewClient(cfg Config) (*kgo.Client, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Group) == "" {
		return nil, errors.New("kafka consumer group is required")
	}

	topics := TopicNames(cfg.TopicPrefix)
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(topics.Component),
		kgo.DefaultProduceTopic(topics.Result),
		kgo.DisableAutoCommit(),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// Runner consumes commands and produces results. Partitions of one poll are
// handled concurrently; records within a partition are handled in order.
type Runner struct {
	Consumer Consumer
	Producer Producer
	Handler  Handler
	Topics   Topics
	Logger   observability.Logger
}

// Run polls until ctx is cancelled or a record cannot be handled. A
// malformed record is terminal and is returned without committing it.
func (r *Runner) Run(ctx context.Context) error {
	logger := observability.OrNop(r.Logger)
	logger.Info("Consuming analysis commands",
		zap.String("input_topic", r.Topics.Component),
		zap.String("output_topic", r.Topics.Result),
	)

	for {
		fetches := r.Consumer.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logger.Warn("Fetch error", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
		})

		group, groupCtx := errgroup.WithContext(ctx)
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			records := p.Records
			group.Go(func() error {
				return r.HandleRecords(groupCtx, records)
			})
		})
		if err := group.Wait(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// HandleRecords processes records of one partition sequentially. Each
// result is produced before its command offset is committed.
func (r *Runner) HandleRecords(ctx context.Context, records []*kgo.Record) error {
	for _, rec := range records {
		if err := r.handle(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) handle(ctx context.Context, rec *kgo.Record) error {
	ctx = observability.ContextWith(ctx,
		zap.String("topic", rec.Topic),
		zap.Int32("partition", rec.Partition),
		zap.Int64("offset", rec.Offset),
	)
	logger := observability.FromContext(ctx, r.Logger)

	cmd, err := DecodeCommand(rec.Key, rec.Value)
	if err != nil {
		logger.Error("Malformed analysis command", zap.Error(err))
		return err
	}

	started := time.Now()
	key, result, err := r.Handler.Process(ctx, cmd)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Failed to process analysis command", zap.String("purl", cmd.Component.PURL), zap.Error(err))
		}
		return err
	}

	recordKey, value, err := EncodeResult(key, result)
	if err != nil {
		return err
	}
	out := &kgo.Record{Topic: r.Topics.Result, Key: recordKey, Value: value}
	if err := r.Producer.ProduceSync(ctx, out).FirstErr(); err != nil {
		return fmt.Errorf("produce result: %w", err)
	}
	if err := r.Consumer.CommitRecords(ctx, rec); err != nil {
		return fmt.Errorf("commit offset: %w", err)
	}

	logger.Debug("Produced analysis result",
		zap.String("purl", cmd.Component.PURL),
		zap.String("result_key", string(recordKey)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

