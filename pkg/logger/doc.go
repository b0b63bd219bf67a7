// Package logger provides structured logging for seedharvest.
//
// It wraps zerolog behind a small Logger interface so components can be
// handed a no-op or capturing logger in tests:
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "harvester")
//	log.InfoWithFields("Page processed", map[string]interface{}{"page": 3})
//
// When logging.file is set, lines go to both the console and the file.
package logger
