/*
Package log wraps zerolog with a process-wide Logger and helpers for child
loggers carrying component, zone, service or request id fields.

Init must be called once at startup; until then Logger discards everything.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("ceph")
	logger.Warn().Err(err).Msg("Failed to fetch host list")

Console output is used unless JSONOutput is set.
*/
package log
