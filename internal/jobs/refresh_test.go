package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	jobmocks "github.com/ed-fi-alliance/ods-admin-api/internal/jobs/mocks"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status/mocks"
)

func intPtr(i int) *int { return &i }

func TestRefreshJob_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		multiTenancy bool
		data         map[string]string
		setupMock    func(m *jobmocks.MockRefresher)
		wantErr      string
	}{
		{
			name: "single tenant refreshes all instances",
			data: map[string]string{TenantNameKey: ""},
			setupMock: func(m *jobmocks.MockRefresher) {
				m.EXPECT().Execute(gomock.Any(), "", (*int)(nil)).Return(nil)
			},
		},
		{
			name: "single tenant ignores tenant name",
			data: map[string]string{TenantNameKey: "t1", OdsInstanceIDKey: "7"},
			setupMock: func(m *jobmocks.MockRefresher) {
				m.EXPECT().Execute(gomock.Any(), "", intPtr(7)).Return(nil)
			},
		},
		{
			name:         "multi tenant passes tenant and instance",
			multiTenancy: true,
			data:         map[string]string{TenantNameKey: "t1", OdsInstanceIDKey: "3"},
			setupMock: func(m *jobmocks.MockRefresher) {
				m.EXPECT().Execute(gomock.Any(), "t1", intPtr(3)).Return(nil)
			},
		},
		{
			name:         "multi tenant without tenant is a no-op",
			multiTenancy: true,
			data:         map[string]string{},
			setupMock:    func(*jobmocks.MockRefresher) {},
		},
		{
			name:      "invalid instance id",
			data:      map[string]string{OdsInstanceIDKey: "abc"},
			setupMock: func(*jobmocks.MockRefresher) {},
			wantErr:   "invalid odsInstanceId",
		},
		{
			name: "refresh error propagates",
			data: map[string]string{},
			setupMock: func(m *jobmocks.MockRefresher) {
				m.EXPECT().Execute(gomock.Any(), "", (*int)(nil)).Return(assert.AnError)
			},
			wantErr: assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			refresher := jobmocks.NewMockRefresher(ctrl)
			tt.setupMock(refresher)

			job := NewRefreshJob(refresher, tt.multiTenancy)
			err := job.Handle(t.Context(), &Context{JobID: "job", FireToken: "f", Data: tt.data})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRefreshQueue_EnqueueRefresh(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	newStatusLog(store)

	refresher := jobmocks.NewMockRefresher(ctrl)
	done := make(chan struct{})
	refresher.EXPECT().Execute(gomock.Any(), "t1", intPtr(5)).
		DoAndReturn(func(context.Context, string, *int) error {
			close(done)
			return nil
		})

	s := NewScheduler(NewRunner(store), store)
	q := NewRefreshQueue(s, NewRefreshJob(refresher, true))

	runID, err := q.EnqueueRefresh(t.Context(), "t1", intPtr(5))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, RefreshEducationOrganizationsJobName+"-t1-"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not run")
	}
	s.Stop()
}

func TestRefreshData(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]string{TenantNameKey: "t1"}, refreshData("t1", nil))
	assert.Equal(t, map[string]string{TenantNameKey: "", OdsInstanceIDKey: "12"}, refreshData("", intPtr(12)))

	id1, id2 := refreshJobID("t1"), refreshJobID("t1")
	assert.NotEqual(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1, "RefreshEducationOrganizationsJob-t1-"))
}
