package handler

import (
	"net/http"
	"time"

	"github.com/finbridge/plaid-link-go/internal/httputil"
	"github.com/finbridge/plaid-link-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// formatItem is the connected-items view: status and error fields pass
// through verbatim, the access token never does.
func formatItem(item model.Item) map[string]any {
	return map[string]any{
		"itemId":          item.ItemID,
		"institutionId":   item.InstitutionID,
		"institutionName": item.InstitutionName,
		"status":          item.Status,
		"errorCode":       item.ErrorCode,
		"errorMessage":    item.ErrorMessage,
		"createdAt":       item.CreatedAt.Format(time.RFC3339),
	}
}

func formatLinkSession(session *model.LinkSession) map[string]any {
	return map[string]any{
		"id":            session.ID,
		"status":        session.Status,
		"linkSessionId": session.LinkSessionID,
		"itemsAdded":    session.ItemsAdded,
		"completedAt":   formatTime(session.CompletedAt),
		"createdAt":     session.CreatedAt.Format(time.RFC3339),
	}
}
