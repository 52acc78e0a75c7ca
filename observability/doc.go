// Package observability provides an ext extension that counts job
// lifecycle events and dispatcher mode switches with OpenTelemetry.
//
//	eng, _ := engine.New(
//	    engine.WithExtension(observability.NewMetricsExtension()),
//	)
package observability
