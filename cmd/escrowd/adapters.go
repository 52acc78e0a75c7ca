package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/debnit/MsmeBazaar-sub000/internal/config"
	"github.com/debnit/MsmeBazaar-sub000/port"
	"github.com/debnit/MsmeBazaar-sub000/port/amqpnotify"
	"github.com/debnit/MsmeBazaar-sub000/port/httpport"
	"github.com/debnit/MsmeBazaar-sub000/port/kafkanotify"
	"github.com/debnit/MsmeBazaar-sub000/port/sesnotify"
)

// adapters bundles the outbound ports the task handlers call.
type adapters struct {
	Notifier   port.Notifier
	Compliance port.ComplianceChecker
	Valuator   port.Valuator
	Documents  port.DocumentGenerator

	closers []func() error
}

func (a *adapters) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func buildAdapters(_ context.Context, cfg config.Config, logger *slog.Logger) (*adapters, error) {
	a := &adapters{}

	httpOpts := []httpport.Option{httpport.WithLogger(logger)}
	if cfg.PortAPIKey != "" {
		httpOpts = append(httpOpts, httpport.WithHeader("Authorization", "Bearer "+cfg.PortAPIKey))
	}

	var notifiers port.MultiNotifier
	for _, name := range cfg.Notifiers {
		switch name {
		case "log":
			notifiers = append(notifiers, port.LogNotifier{Logger: logger})
		case "webhook":
			notifiers = append(notifiers, httpport.NewWebhook(cfg.WebhookURL, httpOpts...))
		case "ses":
			domain := cfg.SESEmailDomain
			book := sesnotify.AddressBookFunc(func(_ context.Context, userID string) (string, error) {
				return userID + "@" + domain, nil
			})
			notifiers = append(notifiers, sesnotify.New(sesnotify.Config{
				From:    cfg.SESFrom,
				Region:  cfg.SESRegion,
				Profile: cfg.SESProfile,
				DryRun:  cfg.SESDryRun,
			}, book, sesnotify.WithLogger(logger)))
		case "amqp":
			conn, err := amqpnotify.Dial(cfg.AMQPURL)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.closers = append(a.closers, conn.Close)
			n, err := amqpnotify.New(conn.Channel, cfg.AMQPExchange, amqpnotify.WithLogger(logger))
			if err != nil {
				a.Close()
				return nil, err
			}
			notifiers = append(notifiers, n)
		case "kafka":
			w, err := kafkanotify.NewWriter(cfg.KafkaBrokers)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.closers = append(a.closers, w.Close)
			n, err := kafkanotify.New(w, cfg.KafkaTopic, kafkanotify.WithLogger(logger))
			if err != nil {
				a.Close()
				return nil, err
			}
			notifiers = append(notifiers, n)
		default:
			a.Close()
			return nil, fmt.Errorf("unknown notifier %q", name)
		}
	}
	a.Notifier = notifiers

	a.Compliance = port.Unconfigured{}
	if cfg.ComplianceURL != "" {
		a.Compliance = httpport.NewCompliance(cfg.ComplianceURL, httpOpts...)
	}
	a.Valuator = port.Unconfigured{}
	if cfg.ValuationURL != "" {
		a.Valuator = httpport.NewValuator(cfg.ValuationURL, httpOpts...)
	}
	a.Documents = port.Unconfigured{}
	if cfg.DocumentsURL != "" {
		a.Documents = httpport.NewDocuments(cfg.DocumentsURL, httpOpts...)
	}
	return a, nil
}
