package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeJob struct {
	name string
	runs int
	err  error
}

func (j *fakeJob) Run() error   { j.runs++; return j.err }
func (j *fakeJob) Name() string { return j.name }

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &fakeJob{name: "bad"})
	assert.Error(t, err)
}

func TestAddJob_ValidSchedules(t *testing.T) {
	s := New(zerolog.Nop())
	for _, spec := range []string{"0 */5 * * *", "@hourly", "@every 30m"} {
		assert.NoError(t, s.AddJob(spec, &fakeJob{name: spec}), spec)
	}
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "manual"}

	assert.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	job.err = errors.New("boom")
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, 2, job.runs)
}
