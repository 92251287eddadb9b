package websocket

import "go.uber.org/zap"

// LogNotifier surfaces fallback notifications through the server log.
// Deployments with a system tray or desktop notification channel plug
// in their own Notifier instead.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed fallback notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(message string) {
	n.logger.Info("User notification", zap.String("message", message))
}
