package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Time-Craft/time-crafting-hub/internal/api/testutils"
	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// Many users race to accept the same offer through the full HTTP stack.
// The conditional write underneath guarantees a single winner; everyone else
// gets the soft conflict response.
func TestConcurrentAcceptOverHTTP(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	_, creatorToken := testCtx.CreateUser(t, "Creator", 0)
	offer := createOffer(t, testCtx, creatorToken, 1, "tutoring")

	const numAccepters = 10
	tokens := make([]string, numAccepters)
	for i := range tokens {
		_, tokens[i] = testCtx.CreateUser(t, fmt.Sprintf("Accepter%d", i), 5)
	}

	type result struct {
		code int
		body []byte
	}

	resultsChan := make(chan result, numAccepters)
	var wg sync.WaitGroup

	for i := 0; i < numAccepters; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			w := testutils.PerformRequest(
				testCtx.Router,
				http.MethodPost,
				fmt.Sprintf("/api/offers/%s/accept", offer.ID),
				nil,
				testutils.AuthHeaders(token),
			)
			resultsChan <- result{code: w.Code, body: w.Body.Bytes()}
		}(tokens[i])
	}

	wg.Wait()
	close(resultsChan)

	var winnerID string
	successes, conflicts := 0, 0
	for res := range resultsChan {
		switch res.code {
		case http.StatusOK:
			successes++
			var resp models.OfferResponse
			require.NoError(t, json.Unmarshal(res.body, &resp))
			require.NotNil(t, resp.Offer)
			require.NotNil(t, resp.Offer.RecipientID)
			winnerID = *resp.Offer.RecipientID
		case http.StatusConflict:
			conflicts++
			var errResp models.ErrorResponse
			require.NoError(t, json.Unmarshal(res.body, &errResp))
			assert.Equal(t, "OFFER_UNAVAILABLE", errResp.Code)
		default:
			t.Errorf("unexpected status %d: %s", res.code, res.body)
		}
	}

	assert.Equal(t, 1, successes, "exactly one accept must win")
	assert.Equal(t, numAccepters-1, conflicts)

	// The store agrees with the winning response
	final, err := testCtx.Repository.GetTransaction(context.Background(), offer.ID)
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, models.StatusInProgress, final.Status)
	require.NotNil(t, final.RecipientID)
	assert.Equal(t, winnerID, *final.RecipientID)
}

// Deleting and accepting the same open offer race; whichever conditional
// write lands first wins and the other side sees the conflict.
func TestDeleteAcceptRaceOverHTTP(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	_, creatorToken := testCtx.CreateUser(t, "Creator", 0)
	_, accepterToken := testCtx.CreateUser(t, "Accepter", 5)

	const rounds = 10
	for i := 0; i < rounds; i++ {
		offer := createOffer(t, testCtx, creatorToken, 1, "tutoring")

		var wg sync.WaitGroup
		codes := make(chan int, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			w := testutils.PerformRequest(testCtx.Router, http.MethodDelete,
				fmt.Sprintf("/api/offers/%s", offer.ID), nil,
				testutils.AuthHeaders(creatorToken))
			codes <- w.Code
		}()
		go func() {
			defer wg.Done()
			w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
				fmt.Sprintf("/api/offers/%s/accept", offer.ID), nil,
				testutils.AuthHeaders(accepterToken))
			codes <- w.Code
		}()

		wg.Wait()
		close(codes)

		var statuses []int
		for code := range codes {
			statuses = append(statuses, code)
		}

		// Each operation moves the offer out of open, so exactly one can win.
		okCount := 0
		for _, code := range statuses {
			switch code {
			case http.StatusOK:
				okCount++
			case http.StatusConflict:
			default:
				t.Fatalf("unexpected status %d", code)
			}
		}
		assert.Equal(t, 1, okCount, "exactly one of delete/accept must win")

		final, err := testCtx.Repository.GetTransaction(context.Background(), offer.ID)
		require.NoError(t, err)
		if final != nil {
			// Accept won; the offer must be claimed, not open
			assert.Equal(t, models.StatusInProgress, final.Status)
		}
	}
}
