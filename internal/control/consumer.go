package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads camera commands from Kafka and applies them.
type Consumer struct {
	cfg     models.ControlConfig
	reader  messageReader
	cameras CameraSet
	log     *slog.Logger
	poll    time.Duration
}

func NewConsumer(cfg models.ControlConfig, cameras CameraSet, log *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("control topic must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
	})
	return newConsumer(cfg, reader, cameras, log), nil
}

func newConsumer(cfg models.ControlConfig, reader messageReader, cameras CameraSet, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{cfg: cfg, reader: reader, cameras: cameras, log: log, poll: 5 * time.Second}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run consumes commands until ctx is done. Malformed commands and commands
// that fail are logged and committed so they are not redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("control_consumer_started",
		slog.String("topic", c.cfg.Topic),
		slog.String("group", c.cfg.GroupID),
		slog.String("brokers", strings.Join(c.cfg.Brokers, ",")),
	)
	defer c.log.Info("control_consumer_stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			c.log.Error("control_fetch_error", slog.Any("err", err))
			continue
		}

		c.handle(ctx, msg)

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				c.log.Error("control_commit_error", slog.Any("err", err))
			}
		}
		commitCancel()
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	cmd, err := DecodeCommand(msg.Value)
	if err != nil {
		c.log.Warn("control_decode_error", slog.Any("err", err), slog.Int64("offset", msg.Offset))
		return
	}
	if err := Apply(ctx, c.cameras, cmd); err != nil {
		c.log.Error("control_command_failed",
			slog.String("type", cmd.Type),
			slog.String("location", cmd.Location),
			slog.Any("err", err),
		)
		return
	}
	c.log.Info("control_command_applied", slog.String("type", cmd.Type), slog.String("location", cmd.Location))
}
