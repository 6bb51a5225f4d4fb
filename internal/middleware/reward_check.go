package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/taskbarter/backend/internal/models"
)

const ctxRewardKey contextKey = "parsed_reward"

// parsedReward is stored in context so the handler can read the reward
// without re-parsing the body.
type parsedReward struct {
	Reward int `json:"reward"`
}

// RewardFromCtx returns the reward parsed by RewardCheck, or 0 if not set.
func RewardFromCtx(ctx context.Context) int {
	if p, ok := ctx.Value(ctxRewardKey).(*parsedReward); ok {
		return p.Reward
	}
	return 0
}

// RewardCheck rejects task creation with an out-of-bounds reward before the
// handler runs. Reads the body to extract "reward", then replaces r.Body so
// downstream handlers can re-read it.
func RewardCheck() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek parsedReward
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if peek.Reward < models.MinReward {
				http.Error(w, fmt.Sprintf(`{"error":"reward must be at least %d"}`, models.MinReward), http.StatusBadRequest)
				return
			}
			if peek.Reward > models.MaxReward {
				http.Error(w, fmt.Sprintf(`{"error":"reward %d exceeds the maximum of %d"}`, peek.Reward, models.MaxReward), http.StatusBadRequest)
				return
			}

			ctx := context.WithValue(r.Context(), ctxRewardKey, &peek)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
