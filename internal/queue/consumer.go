package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/eventhub/internal/logger"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// StartAuditConsumer consumes the audit queue and appends one line per event
// to <logDir>/auth-audit.log. It reconnects with exponential backoff and
// returns when ctx is cancelled.
func StartAuditConsumer(ctx context.Context, url, queue, logDir string) error {
	if queue == "" {
		queue = DefaultAuditQueue
	}
	w := &auditWriter{dir: logDir}

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn().Err(err).Dur("retry_in", backoff).Msg("audit-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialBackoff

		err = consumeLoop(ctx, conn, queue, w)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(err).Msg("audit-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, w *auditWriter) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn().Err(err).Msg("audit-consumer: set QoS failed")
	}
	if err := declareQueue(ch, queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := w.handle(d.Body); err != nil {
				logger.Error().Err(err).Msg("audit-consumer: handle message failed")
				_ = d.Nack(false, false) // no requeue, avoids a poison loop
				continue
			}
			_ = d.Ack(false)
		}
	}
}

type auditWriter struct {
	dir string
}

func (w *auditWriter) handle(body []byte) error {
	var ev AuthEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(w.dir, auditLogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func formatLine(ev AuthEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | user_id=%s", ev.OccurredAt.UTC().Format(auditTimestampLayout), ev.Type, ev.UserID)
	if ev.FamilyID != "" {
		fmt.Fprintf(&b, " | family_id=%s", ev.FamilyID)
	}
	if ev.DeviceID != "" {
		fmt.Fprintf(&b, " | device_id=%q", ev.DeviceID)
	}
	if ev.Provider != "" {
		fmt.Fprintf(&b, " | provider=%s", ev.Provider)
	}
	b.WriteByte('\n')
	return b.String()
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// sleep waits for d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
