//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/aevon-lab/segmentd/internal/projection"
	"github.com/stretchr/testify/require"
)

type eventPayload struct {
	UserID    string    `json:"user_id"`
	EventName string    `json:"event_name"`
	EventTime time.Time `json:"event_time"`
	MessageID string    `json:"message_id,omitempty"`
}

func click(user, messageID string, at time.Time) eventPayload {
	return eventPayload{UserID: user, EventName: clickers.EventName, EventTime: at, MessageID: messageID}
}

func TestSegments_E2ELifecycle(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	base := time.Now().UTC().Truncate(time.Second)
	start := base.Add(-time.Minute)
	prefix := fmt.Sprintf("e2e-%d", time.Now().UnixNano())

	t.Run("health endpoint", func(t *testing.T) {
		require.Equal(t, http.StatusOK, getJSON(t, h.client, h.baseURL+"/health", nil))
	})

	t.Run("ingest batch via canonical endpoint", func(t *testing.T) {
		status, body := postJSON(t, h.client, h.baseURL+"/v1/events", []eventPayload{
			click("1", prefix+"-m1", base.Add(-10*time.Second)),
			click("1", prefix+"-m2", base.Add(-5*time.Second)),
			click("2", prefix+"-m3", base.Add(-5*time.Second)),
		})
		require.Equal(t, http.StatusAccepted, status, string(body))
	})

	t.Run("redelivery via alias endpoint", func(t *testing.T) {
		status, body := postJSON(t, h.client, h.baseURL+"/v1/ingest", click("2", prefix+"-m3", base.Add(-5*time.Second)))
		require.Equal(t, http.StatusAccepted, status, string(body))
	})

	t.Run("invalid event is rejected", func(t *testing.T) {
		status, body := postJSON(t, h.client, h.baseURL+"/v1/events", eventPayload{EventName: clickers.EventName, EventTime: base})
		require.Equal(t, http.StatusBadRequest, status, string(body))
	})

	t.Run("first cycle assigns only the user with two distinct clicks", func(t *testing.T) {
		res := h.runCycleOnce(t, start)
		require.Equal(t, 2, res.Affected)

		var members projection.MembersResponse
		require.Equal(t, http.StatusOK, getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/members", &members))
		require.Equal(t, []string{"1"}, members.Members)

		var a projection.AssignmentResponse
		require.Equal(t, http.StatusOK, getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/users/1", &a))
		require.True(t, a.Value)
		require.NotNil(t, a.LastEventTime)
		require.True(t, base.Add(-5*time.Second).Equal(*a.LastEventTime))

		var b projection.AssignmentResponse
		require.Equal(t, http.StatusOK, getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/users/2", &b))
		require.False(t, b.Value)
	})

	t.Run("a late second click flips user 2", func(t *testing.T) {
		status, body := postJSON(t, h.client, h.baseURL+"/v1/events", click("2", prefix+"-m4", base.Add(-20*time.Second)))
		require.Equal(t, http.StatusAccepted, status, string(body))

		h.runCycleOnce(t, start)

		var members projection.MembersResponse
		require.Equal(t, http.StatusOK, getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/members", &members))
		require.Equal(t, []string{"1", "2"}, members.Members)

		var b projection.AssignmentResponse
		require.Equal(t, http.StatusOK, getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/users/2", &b))
		require.True(t, b.Value)
		// Max by event time, not by arrival order.
		require.True(t, base.Add(-5*time.Second).Equal(*b.LastEventTime))
	})

	t.Run("re-running the cycle changes nothing", func(t *testing.T) {
		h.runCycleOnce(t, start)

		var members projection.MembersResponse
		require.Equal(t, http.StatusOK, getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/members", &members))
		require.Equal(t, []string{"1", "2"}, members.Members)
	})

	t.Run("unknown user and segment return 404", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/users/nobody", nil))
		require.Equal(t, http.StatusNotFound, getJSON(t, h.client, h.baseURL+"/v1/segments/nope/members", nil))
	})
}

func TestSegments_SchedulerAssignsMembers(t *testing.T) {
	h := startHarnessWithScheduler(t, 200*time.Millisecond)
	defer h.close(t)

	base := time.Now().UTC().Truncate(time.Second)
	prefix := fmt.Sprintf("sched-%d", time.Now().UnixNano())

	status, body := postJSON(t, h.client, h.baseURL+"/v1/events", []eventPayload{
		click("u", prefix+"-m1", base),
		click("u", prefix+"-m2", base),
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var members projection.MembersResponse
		if getJSON(t, h.client, h.baseURL+"/v1/segments/frequent_clickers/members", &members) == http.StatusOK &&
			len(members.Members) == 1 && members.Members[0] == "u" {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("scheduler did not assign user u within 10s")
}
