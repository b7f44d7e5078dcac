// Package logger builds slog loggers with consistent output formats and
// context-aware attributes.
//
// Services receive a *slog.Logger through their options and never construct
// handlers themselves. Context extractors inject per-request attributes (such
// as the resolved tenant ID) into every record without callers passing them
// explicitly:
//
//	log := logger.New(
//		logger.WithFormat(logger.FormatJSON),
//		logger.WithAttr(slog.String("service", "formforge")),
//		logger.WithContextExtractors(tenant.LogExtractor()),
//	)
package logger
