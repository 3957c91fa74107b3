package sync

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/nhle/remindly/internal/model"
)

func TestResultOutcome(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"queued", Result{Success: true, Queued: true}, outcomeQueued},
		{"offline skip", Result{Success: true, Offline: true}, outcomeOffline},
		{"offline failure", Result{Offline: true, Message: MsgOffline}, outcomeFailure},
		{"success", Result{Success: true}, outcomeSuccess},
		{"token", Result{TokenError: true}, outcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.outcome())
		})
	}
}

func TestRecordCounters(t *testing.T) {
	passes := testutil.ToFloat64(passesTotal.WithLabelValues(outcomeQueued))
	recordPass(Result{Success: true, Queued: true}, time.Second)
	assert.Equal(t, passes+1, testutil.ToFloat64(passesTotal.WithLabelValues(outcomeQueued)))

	pushed := testutil.ToFloat64(rowsPushedTotal.WithLabelValues(string(model.TableTasks), opCreate))
	recordPushed(model.TableTasks, opCreate)
	assert.Equal(t, pushed+1, testutil.ToFloat64(rowsPushedTotal.WithLabelValues(string(model.TableTasks), opCreate)))

	pulled := testutil.ToFloat64(rowsPulledTotal.WithLabelValues(string(model.TableSubtasks)))
	recordPulled(model.TableSubtasks, 3)
	assert.Equal(t, pulled+3, testutil.ToFloat64(rowsPulledTotal.WithLabelValues(string(model.TableSubtasks))))

	failed := testutil.ToFloat64(rowFailuresTotal.WithLabelValues(string(model.TableTaskLists), opDelete))
	recordRowFailure(model.TableTaskLists, opDelete)
	assert.Equal(t, failed+1, testutil.ToFloat64(rowFailuresTotal.WithLabelValues(string(model.TableTaskLists), opDelete)))
}
