// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/authsentry/internal/logging"
)

// AttemptsHandlerName is the router handler consuming login attempts.
const AttemptsHandlerName = "login-attempts"

// Pipeline owns the NATS side of the service: the optional embedded server,
// the stream, the resilient publisher used for alerts and poisoned attempts,
// and the router feeding login attempts to the engine.
type Pipeline struct {
	settings   Settings
	server     *EmbeddedServer
	publisher  *Publisher
	subscriber message.Subscriber
	router     *Router
}

// NewPipeline connects everything described by settings and registers
// handler for the attempts topic. Nothing is consumed until Run.
func NewPipeline(ctx context.Context, settings Settings, handler message.NoPublishHandlerFunc, logger watermill.LoggerAdapter) (*Pipeline, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: attempts handler required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}

	p := &Pipeline{settings: settings}

	if settings.EmbeddedServer {
		srv, err := NewEmbeddedServer(&settings.Server)
		if err != nil {
			return nil, err
		}
		p.server = srv
		p.settings.Publisher.URL = srv.ClientURL()
		p.settings.Subscriber.URL = srv.ClientURL()
		logging.Info().Str("url", srv.ClientURL()).Msg("embedded NATS server started")
	}

	if err := EnsureStreamAt(ctx, p.settings.Publisher.URL, &p.settings.Stream); err != nil {
		p.shutdownServer(ctx)
		return nil, err
	}

	pub, err := NewPublisher(p.settings.Publisher, logger)
	if err != nil {
		p.shutdownServer(ctx)
		return nil, err
	}
	pub.SetCircuitBreaker(NewCircuitBreaker(p.settings.Breaker))
	p.publisher = pub

	sub, err := NewSubscriber(&p.settings.Subscriber, logger)
	if err != nil {
		_ = pub.Close()
		p.shutdownServer(ctx)
		return nil, err
	}
	p.subscriber = sub

	router, err := NewRouter(&p.settings.Router, pub, logger)
	if err != nil {
		_ = sub.Close()
		_ = pub.Close()
		p.shutdownServer(ctx)
		return nil, err
	}
	router.AddConsumerHandler(AttemptsHandlerName, p.settings.AttemptsTopic, sub, handler)
	p.router = router

	return p, nil
}

// Publisher returns the publisher for outbound alerts.
func (p *Pipeline) Publisher() message.Publisher {
	return p.publisher
}

// AlertsTopic returns the subject alerts are published to.
func (p *Pipeline) AlertsTopic() string {
	return p.settings.AlertsTopic
}

// Run consumes login attempts until ctx is canceled.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.router.Run(ctx)
}

// IsRunning reports whether the router is consuming login attempts.
func (p *Pipeline) IsRunning() bool {
	return p.router != nil && p.router.IsRunning()
}

// Close stops the router and releases connections, then the embedded server.
func (p *Pipeline) Close(ctx context.Context) error {
	var errs []error
	if p.router != nil {
		if err := p.router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close router: %w", err))
		}
	}
	if p.subscriber != nil {
		if err := p.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown NATS server: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) shutdownServer(ctx context.Context) {
	if p.server == nil {
		return
	}
	if err := p.server.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("embedded NATS server shutdown failed")
	}
}
