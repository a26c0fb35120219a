// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package supervisor provides process supervision for AuthSentry using suture v4.

The tree isolates failures by layer:

	RootSupervisor ("authsentry")
	├── EngineSupervisor ("engine-layer")
	│   └── DetectionService (retention loop, notifier drain)
	├── MessagingSupervisor ("messaging-layer")
	│   └── PipelineService (if nats.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed NATS consumer is restarted with backoff while the HTTP API keeps
answering. Supervisor events are logged through sutureslog and the zerolog
slog bridge.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddEngineService(services.NewDetectionService(engine))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)
*/
package supervisor
