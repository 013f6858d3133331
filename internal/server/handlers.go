package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"autopull/internal/history"
	"autopull/internal/mapping"
	"autopull/pkg/cmdutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-github/v57/github"
	"github.com/google/uuid"
)

// HandleHook authenticates a hook request, resolves its key and runs every
// mapped target.
func (s *Server) HandleHook(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	runID := uuid.NewString()

	logger := s.Logger.With(
		"run_id", runID,
		"key", key,
		"request_id", middleware.GetReqID(r.Context()))

	event := github.WebHookType(r)
	delivery := github.DeliveryID(r)
	if event != "" {
		logger = logger.With("event", event, "delivery", delivery)
	}

	body, err := readBody(w, r)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	run := &history.RunRecord{
		RunID:      runID,
		Key:        key,
		Mode:       string(s.Mapping.Mode()),
		Event:      stringPtrOrNil(event),
		DeliveryID: stringPtrOrNil(delivery),
	}

	if err := ValidateSignature(s.opts.Secret, body, r.Header.Get(SignatureHeader)); err != nil {
		logger.Debug("Digest mismatch",
			"expected", ComputeDigest(s.opts.Secret, body),
			"received", r.Header.Get(SignatureHeader))
		if s.Mapping.Has(key) {
			run.Status = history.StatusRejected
			run.ErrorMessage = stringPtr(err.Error())
			s.recordRun(r.Context(), logger, run)
		}
		respondError(w, logger, err)
		return
	}

	if event == "push" {
		logPush(logger, body)
	}

	targets, err := s.Mapping.Resolve(key)
	if err != nil {
		var missing *mapping.TargetMissingError
		if errors.As(err, &missing) {
			run.Status = history.StatusFailed
			run.ErrorMessage = stringPtr(err.Error())
			s.recordRun(r.Context(), logger, run)
		}
		respondError(w, logger, err)
		return
	}

	run.Status = history.StatusRunning
	run.Targets = len(targets)
	s.recordRun(r.Context(), logger, run)

	switch s.Mapping.Mode() {
	case mapping.ModeScript:
		s.launchScripts(w, logger, run, targets)
	default:
		s.runPulls(w, r, logger, run, targets)
	}
}

// runPulls pulls every target in order and answers with the joined output.
// The pulls are not cancelled if the client goes away.
func (s *Server) runPulls(w http.ResponseWriter, r *http.Request, logger *slog.Logger, run *history.RunRecord, targets []mapping.Target) {
	ctx := context.WithoutCancel(r.Context())

	output, err := s.Executor.PullAll(ctx, targets)
	if err != nil {
		s.completeRun(logger, run, history.StatusFailed, err.Error())
		respondError(w, logger, err)
		return
	}

	s.completeRun(logger, run, history.StatusSuccess, "")
	logger.Info("Pulled", "targets", len(targets))
	respondJSON(w, logger, http.StatusOK, PullResponse{Output: output})
}

// launchScripts starts every script and answers without waiting for them.
// Their output is logged by a drain goroutine once they exit.
func (s *Server) launchScripts(w http.ResponseWriter, logger *slog.Logger, run *history.RunRecord, targets []mapping.Target) {
	procs, err := s.Executor.LaunchAll(targets)
	if err != nil {
		// Scripts started before the failure keep running and are drained.
		s.drain(logger, nil, procs)
		s.completeRun(logger, run, history.StatusFailed, err.Error())
		respondError(w, logger, err)
		return
	}

	respondJSON(w, logger, http.StatusOK, ScriptResponse{Success: true})
	s.drain(logger, run, procs)
}

// drain waits for procs in the background and logs their output in launch
// order. run, if not nil, is completed when all of them have exited.
func (s *Server) drain(logger *slog.Logger, run *history.RunRecord, procs []*cmdutil.Process) {
	if len(procs) == 0 {
		return
	}

	s.drainWg.Add(1)
	go func() {
		defer s.drainWg.Done()

		results := s.Executor.Drain(procs)
		if run == nil {
			return
		}

		var failures []string
		for _, res := range results {
			if !res.OK() {
				failures = append(failures, fmt.Sprintf("%s exited with status %d", res.Target, res.ReturnCode))
			}
		}
		if len(failures) > 0 {
			s.completeRun(logger, run, history.StatusFailed, strings.Join(failures, "; "))
			return
		}
		s.completeRun(logger, run, history.StatusSuccess, "")
	}()
}

// HandleHealth reports the mode, namespace and mapped keys.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.Logger, http.StatusOK, HealthResponse{
		Status:       "ok",
		Mode:         string(s.Mapping.Mode()),
		Namespace:    s.opts.Namespace,
		Keys:         s.Mapping.Keys(),
		MappingCount: s.Mapping.Count(),
	})
}

// HandleStatus returns the latest and recent runs of one key.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	logger := s.Logger.With("key", key)

	if !s.Mapping.Has(key) {
		respondError(w, logger, &mapping.UnknownKeyError{Key: key})
		return
	}
	if s.History == nil {
		respondError(w, logger, errHistoryUnavailable)
		return
	}

	latest, err := s.History.GetLatestRun(r.Context(), key)
	if err != nil {
		respondError(w, logger, fmt.Errorf("failed to fetch run status: %w", err))
		return
	}

	recent, err := s.History.GetRunHistory(r.Context(), key, RecentRunsLimit)
	if err != nil {
		respondError(w, logger, fmt.Errorf("failed to fetch run history: %w", err))
		return
	}
	if recent == nil {
		recent = []history.RunRecord{}
	}

	respondJSON(w, logger, http.StatusOK, history.KeyStatus{
		Key:           key,
		LatestRun:     latest,
		RecentHistory: recent,
	})
}

// HandleStatusAll returns the latest run of every key.
func (s *Server) HandleStatusAll(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		respondError(w, s.Logger, errHistoryUnavailable)
		return
	}

	latest, err := s.History.GetAllKeysStatus(r.Context())
	if err != nil {
		respondError(w, s.Logger, fmt.Errorf("failed to fetch run status: %w", err))
		return
	}

	respondJSON(w, s.Logger, http.StatusOK, StatusResponse{Keys: latest})
}

// readBody reads at most MaxPayloadBytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.ContentLength > MaxPayloadBytes {
		return nil, errPayloadTooLarge
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errPayloadTooLarge
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return body, nil
}

// logPush logs what a GitHub push delivery is about. The payload is never
// required to parse.
func logPush(logger *slog.Logger, body []byte) {
	event, err := github.ParseWebHook("push", body)
	if err != nil {
		logger.Debug("Push payload not parsed", "error", err)
		return
	}
	push, ok := event.(*github.PushEvent)
	if !ok {
		return
	}

	logger.Info("Push received",
		"repository", push.GetRepo().GetFullName(),
		"ref", push.GetRef(),
		"before", push.GetBefore(),
		"after", push.GetAfter(),
		"commits", len(push.Commits),
		"head_commit", push.GetHeadCommit().GetMessage())
}

func (s *Server) recordRun(ctx context.Context, logger *slog.Logger, run *history.RunRecord) {
	if s.History == nil {
		return
	}
	if _, err := s.History.RecordRun(ctx, run); err != nil {
		logger.Error("Failed to record run", "error", err)
	}
}

func (s *Server) completeRun(logger *slog.Logger, run *history.RunRecord, status, errMsg string) {
	if s.History == nil {
		return
	}
	if err := s.History.CompleteRun(context.Background(), run.RunID, status, errMsg); err != nil {
		logger.Error("Failed to complete run record", "error", err)
	}
}

func stringPtr(s string) *string {
	return &s
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
