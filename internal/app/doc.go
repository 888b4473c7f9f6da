// Package app wires the validation service together: configuration,
// telemetry, the rule dispatcher, the websocket hub, the rules file watcher and
// the chi router.
//
// # Initialization Flow
//
//	1. Load configuration from the optional YAML file and the environment
//	2. Initialize logging and OpenTelemetry
//	3. Load the rules file and build the dispatcher
//	4. Start the websocket hub and create the services
//	5. Set up middleware and routes
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests, closes
// websocket clients, stops the rules watcher and flushes telemetry. The package
// never calls os.Exit.
package app
