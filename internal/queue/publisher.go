package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/logger"
)

// Publisher は予約イベントをRabbitMQに発行する。
// 発行失敗はログに残して呼び出し元へ返すのみで、予約フロー自体は
// 失敗させない（通知配送は本体の責務外）。
type Publisher struct {
	conn *amqp.Connection
}

// NewPublisher はAMQP接続を確立してPublisherを作成する
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Close は接続を閉じる
func (p *Publisher) Close() error {
	return p.conn.Close()
}

// PublishBookingConfirmed は予約確定イベントを発行する
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
	return p.publish(ctx, QueueBookingConfirmed, event)
}

// PublishBookingCancelled は予約キャンセルイベントを発行する
func (p *Publisher) PublishBookingCancelled(ctx context.Context, event BookingCancelledEvent) error {
	return p.publish(ctx, QueueBookingCancelled, event)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		logger.Warn("チャンネル作成に失敗", zap.String("queue", queueName), zap.Error(err))
		return fmt.Errorf("チャンネル作成に失敗: %w", err)
	}
	defer ch.Close()

	// キュー宣言は冪等。durableでブローカー再起動に耐える。
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		logger.Warn("キュー宣言に失敗", zap.String("queue", queueName), zap.Error(err))
		return fmt.Errorf("キュー宣言に失敗: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントの変換に失敗: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		logger.Warn("イベント発行に失敗", zap.String("queue", queueName), zap.Error(err))
		return fmt.Errorf("イベント発行に失敗: %w", err)
	}
	return nil
}
