// Command replay drives a running service with a synthetic capture stream.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/stride/internal/replay"
	"github.com/motionlab/stride/pkg/logger"
)

const (
	tickInterval   = 200 * time.Millisecond
	requestTimeout = 5 * time.Second
)

func main() {
	baseURL := flag.String("url", "http://localhost:9080", "service base URL")
	duration := flag.Duration("duration", 60*time.Second, "replay duration")
	cadence := flag.Float64("cadence", 110, "cadence, steps per minute")
	speed := flag.Float64("speed", 1.2, "walking speed, m/s")
	decline := flag.Float64("decline", 0, "posture decline, deg per minute")
	seed := flag.Int64("seed", 1, "noise seed")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("replay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: requestTimeout}

	sessionID, err := createSession(ctx, client, *baseURL)
	if err != nil {
		log.Error(ctx, "session create failed", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "session created", logger.String("session_id", sessionID))

	profile := replay.DefaultProfile()
	profile.CadenceSPM = *cadence
	profile.SpeedMS = *speed
	profile.PostureDeclineDegPerMin = *decline
	profile.Seed = *seed
	gen := replay.NewGenerator(profile)

	framesPerTick := int(profile.FrameRateHz * tickInterval.Seconds())
	imuPerTick := int(profile.IMURateHz * tickInterval.Seconds())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	deadline := time.Now().Add(*duration)

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}

		frames := gen.NextFrames(framesPerTick)
		if err := postBatch(ctx, client, *baseURL, sessionID, "frames", map[string]any{
			"batch_id": uuid.NewString(),
			"frames":   frames,
		}); err != nil {
			log.Warn(ctx, "frame batch failed", logger.Error(err))
		}

		samples := gen.NextIMU(imuPerTick)
		if err := postBatch(ctx, client, *baseURL, sessionID, "imu", map[string]any{
			"batch_id": uuid.NewString(),
			"samples":  samples,
		}); err != nil {
			log.Warn(ctx, "imu batch failed", logger.Error(err))
		}
	}

	snap, err := endSession(ctx, client, *baseURL, sessionID)
	if err != nil {
		log.Error(ctx, "session end failed", logger.Error(err))
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(snap)
}

func createSession(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/sessions", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: status %d", resp.StatusCode)
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.SessionID, nil
}

func postBatch(ctx context.Context, client *http.Client, baseURL, sessionID, kind string, payload map[string]any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/sessions/%s/%s", baseURL, sessionID, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s batch: status %d", kind, resp.StatusCode)
	}
	return nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) (map[string]any, error) {
	url := fmt.Sprintf("%s/sessions/%s", baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("end session: status %d", resp.StatusCode)
	}
	var snap map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, err
	}
	return snap, nil
}
