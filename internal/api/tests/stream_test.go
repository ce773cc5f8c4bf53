package api_test

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Time-Craft/time-crafting-hub/internal/api/testutils"
)

// The creator holds an SSE stream open while someone accepts their offer; the
// stream must carry both the raw change event and the derived notification.
func TestEventStreamDeliversAcceptNotification(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	_, creatorToken := testCtx.CreateUser(t, "Creator", 0)
	_, accepterToken := testCtx.CreateUser(t, "Accepter", 5)

	offer := createOffer(t, testCtx, creatorToken, 2, "tutoring")

	server := httptest.NewServer(testCtx.Router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+creatorToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// Let the subscription attach before triggering the change
	time.Sleep(50 * time.Millisecond)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/api/offers/%s/accept", offer.ID), nil,
		testutils.AuthHeaders(accepterToken))
	require.Equal(t, http.StatusOK, w.Code)

	var sawChange, sawNotification, sawTitle bool
	deadline := time.After(3 * time.Second)
	for !(sawChange && sawNotification && sawTitle) {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before the expected events arrived")
			}
			switch {
			case strings.HasPrefix(line, "event:") && strings.Contains(line, "change"):
				sawChange = true
			case strings.HasPrefix(line, "event:") && strings.Contains(line, "notification"):
				sawNotification = true
			case strings.Contains(line, "New Offer Request"):
				sawTitle = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for stream events (change=%v notification=%v title=%v)",
				sawChange, sawNotification, sawTitle)
		}
	}
}
