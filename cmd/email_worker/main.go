package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/cartline/user-service/config"
	"github.com/cartline/user-service/pkg/helpers"
	"github.com/cartline/user-service/pkg/mailer"
)

// email_worker consumes EmailJob messages from RabbitMQ and delivers them
// via Mailgun. Delivery failures are nacked with requeue; malformed
// messages are dropped so they cannot poison the queue.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq dial failed")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq channel failed")
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(cfg.RabbitMQEmailQueue, true, false, false, false, nil); err != nil {
		logger.WithError(err).Fatal("queue declare failed")
	}
	// One unacked message per worker keeps delivery ordered and retryable.
	if err := ch.Qos(1, 0, false); err != nil {
		logger.WithError(err).Fatal("qos failed")
	}

	deliveries, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.WithError(err).Fatal("consume failed")
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopping")
			return
		case d, ok := <-deliveries:
			if !ok {
				// os.Exit skips defers, so release AMQP handles first
				logger.Warn("delivery channel closed")
				_ = ch.Close()
				_ = conn.Close()
				os.Exit(1)
			}
			handleDelivery(ctx, logger, mg, d)
		}
	}
}

func handleDelivery(ctx context.Context, logger *logrus.Logger, mg *mailer.Mailgun, d amqp.Delivery) {
	var job mailer.EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		logger.WithError(err).Warn("dropping malformed email job")
		_ = d.Nack(false, false)
		return
	}

	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		s, t, h, err := mailer.Render(job.Template, job.Data)
		if err != nil {
			logger.WithError(err).WithField("template", job.Template).Warn("dropping email job with unknown template")
			_ = d.Nack(false, false)
			return
		}
		subject, text, html = s, t, h
	}

	if err := mg.Send(ctx, job.To, subject, text, html); err != nil {
		logger.WithError(err).WithField("to", job.To).Error("email send failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	logger.WithFields(logrus.Fields{"to": job.To, "template": job.Template}).Info("email sent")
	_ = d.Ack(false)
}
