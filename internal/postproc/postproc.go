// Package postproc notifies an external post-processing target about newly
// completed datasets. Notification is strictly best effort: the completion
// has already committed, so failures are logged and swallowed.
package postproc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/agentic-research/depot/api"
)

// Notify passes a completed dataset location to the configured target.
// An http(s) target receives a POST with a Notification body; anything else
// is treated as a command line and launched with the location appended as
// the final argument. Returns whether the hand-off succeeded, for logging
// only.
func Notify(ctx context.Context, log *zap.Logger, target, location string) bool {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return notifyEndpoint(ctx, log, target, location)
	}
	return launchCommand(log, target, location)
}

func notifyEndpoint(ctx context.Context, log *zap.Logger, endpoint, location string) bool {
	body, err := json.Marshal(api.Notification{
		Event:    api.NotificationEvent,
		Location: location,
	})
	if err != nil {
		log.Error("cannot encode completion notification", zap.Error(err))
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error("cannot build completion notification", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Error("completion notification failed",
			zap.String("endpoint", endpoint), zap.Error(err))
		return false
	}
	_ = resp.Body.Close()
	log.Debug("completion notification sent",
		zap.String("endpoint", endpoint), zap.String("location", location))
	return true
}

func launchCommand(log *zap.Logger, command, location string) bool {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		log.Error("empty completion hook command")
		return false
	}
	args := append(parts[1:], location)
	// Fire and forget; the script outlives the request.
	cmd := exec.Command(parts[0], args...)
	if err := cmd.Start(); err != nil {
		log.Error("completion hook command failed to start",
			zap.String("command", parts[0]), zap.Error(err))
		return false
	}
	go func() { _ = cmd.Wait() }()
	log.Debug("completion hook command launched",
		zap.String("command", parts[0]), zap.String("location", location))
	return true
}
