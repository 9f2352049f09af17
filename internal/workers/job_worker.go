package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/voiceinterview/internal/metrics"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/services"
	"golang.org/x/sync/errgroup"
)

var errSkipped = errors.New("skipped")

// JobPool consumes background jobs from a Redis stream with a consumer
// group, so several server instances share the work.
type JobPool struct {
	Redis      *redis.Client
	Interviews services.InterviewService
	Recordings services.RecordingService // optional
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

// Run blocks until ctx is done.
func (p *JobPool) Run(ctx context.Context) error {
	if p.Redis == nil || p.Interviews == nil {
		return errors.New("JobPool missing dependency: Redis/Interviews must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultJobStream
	}
	if p.Group == "" {
		p.Group = DefaultJobGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 4
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		g.Go(func() error {
			p.runConsumer(ctx, consumer)
			return nil
		})
	}
	return g.Wait()
}

func (p *JobPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(context.WithoutCancel(ctx), p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *JobPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	job := models.Job{
		Type:    getStr("type"),
		CallID:  getStr("call_id"),
		Payload: json.RawMessage(getStr("payload")),
	}
	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"job_type": job.Type,
		"call_id":  job.CallID,
	})

	err := p.handle(ctx, job)
	switch {
	case err == nil:
		metrics.JobsProcessed.WithLabelValues(job.Type, "ok").Inc()
		log.Info("job done")
	case errors.Is(err, errSkipped):
		metrics.JobsProcessed.WithLabelValues(job.Type, "skipped").Inc()
		log.WithError(err).Debug("job skipped")
	default:
		metrics.JobsProcessed.WithLabelValues(job.Type, "failed").Inc()
		log.WithError(err).Error("job failed")
	}
}

func (p *JobPool) handle(ctx context.Context, job models.Job) error {
	switch job.Type {
	case models.JobInterviewCompleted:
		var rec models.InterviewRecord
		if err := json.Unmarshal(job.Payload, &rec); err != nil {
			return fmt.Errorf("decode interview record: %w", err)
		}
		if rec.UserID == "" {
			// anonymous call; the browser saves it after sign-in
			return fmt.Errorf("%w: record has no user", errSkipped)
		}
		_, err := p.Interviews.Save(ctx, &rec)
		return err

	case models.JobArchiveRecording:
		if p.Recordings == nil {
			return fmt.Errorf("%w: recording archive disabled", errSkipped)
		}
		var payload models.ArchiveRecordingPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode archive payload: %w", err)
		}
		stored, err := p.Recordings.Archive(ctx, job.CallID, payload.RecordingURL)
		if err != nil {
			return err
		}
		p.Logger.WithFields(logrus.Fields{"call_id": job.CallID, "stored": stored}).Info("recording archived")
		return nil

	default:
		return fmt.Errorf("%w: unknown job type %q", errSkipped, job.Type)
	}
}
