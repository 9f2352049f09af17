package services

import (
	"context"
	"sync"

	"github.com/yoockh/voiceinterview/internal/models"
)

type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", context.DeadlineExceeded
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []models.Job
	err  error
}

func (f *fakeJobs) Enqueue(_ context.Context, j models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, j)
	return nil
}

type fakeStatus struct {
	mu      sync.Mutex
	updates []models.StatusUpdate
}

func (f *fakeStatus) Notify(_ context.Context, u models.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}

type fakeTranscripts struct {
	mu      sync.Mutex
	entries []models.TranscriptEntry
}

func (f *fakeTranscripts) Record(_ context.Context, e models.TranscriptEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}
