package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrina/internal/dto"
	"vitrina/internal/model"
)

func TestGetQuery(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		data := readBody(t, r)
		assert.Equal(t, "q-people", data["id"])
		writeJSON(w, map[string]any{"query": map[string]any{
			"id":    "q-people",
			"name":  "People",
			"label": "People",
			"columns": []map[string]any{
				{"name": "FirstName", "type": "String"},
			},
		}})
	})

	q, err := s.GetQuery(context.Background(), "q-people")
	require.NoError(t, err)
	assert.Equal(t, "People", q.Name())
	require.Len(t, q.Columns(), 1)
}

func TestGetQueryEmptyResult(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})

	_, err := s.GetQuery(context.Background(), "q-people")
	require.EqualError(t, err, "empty query result")
}

type notifyHooks struct {
	BaseHooks

	mu       sync.Mutex
	text     string
	typ      model.NotificationType
	duration int
}

func (h *notifyHooks) OnShowNotification(text string, typ model.NotificationType, duration int) {
	h.mu.Lock()
	h.text, h.typ, h.duration = text, typ, duration
	h.mu.Unlock()
}

func TestGetPersistentObjectTransientNotification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"result": map[string]any{
			"id":                   "po-1",
			"type":                 "Invoice",
			"objectId":             "42",
			"notification":         "Saved",
			"notificationType":     "OK",
			"notificationDuration": 3,
		}})
	}))
	defer server.Close()

	hooks := &notifyHooks{}
	s := New(server.URL, &Options{Transient: true, Hooks: hooks})

	po, err := s.GetPersistentObject(context.Background(), nil, "po-1", "42", false)
	require.NoError(t, err)
	require.NotNil(t, po)

	// Кратковременное уведомление показано хуком и не осело в объекте.
	assert.Equal(t, "Saved", hooks.text)
	assert.Equal(t, model.NotificationOK, hooks.typ)
	assert.Equal(t, 3, hooks.duration)
	assert.Empty(t, po.NotificationText())
}

func TestGetPersistentObjectErrorNotification(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"result": map[string]any{
			"id":               "po-1",
			"type":             "Invoice",
			"notification":     "Access denied",
			"notificationType": "Error",
		}})
	})

	_, err := s.GetPersistentObject(context.Background(), nil, "po-1", "42", false)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Access denied", se.Exception)
}

func TestExecuteQueryFollowsContinuation(t *testing.T) {
	calls := 0
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		data := readBody(t, r)
		q := data["query"].(map[string]any)
		if calls == 1 {
			writeJSON(w, map[string]any{"result": map[string]any{
				"items": []map[string]any{
					{"id": "1"}, {"id": "2"},
				},
				"continuation": "c1",
				"totalItems":   -1,
			}})
			return
		}
		// Докачка продолжает с токена и просит только остаток.
		assert.Equal(t, "c1", q["continuation"])
		assert.EqualValues(t, 1, q["top"])
		writeJSON(w, map[string]any{"result": map[string]any{
			"items": []map[string]any{{"id": "3"}},
		}})
	})

	query := model.NewQuery(s, &dto.Query{ID: "q-people", Name: "People", Top: 3}, nil, 0)

	page, err := s.ExecuteQuery(context.Background(), nil, query, false)
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	require.Len(t, page.Items, 3)
	assert.Empty(t, page.Continuation)
	// Континуации исчерпаны — итог известен точно.
	assert.Equal(t, 3, page.TotalItems)
}

func TestExecuteQueryServerError(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"exception": "No access"})
	})

	query := model.NewQuery(s, &dto.Query{ID: "q-people", Name: "People"}, nil, 0)

	_, err := s.ExecuteQuery(context.Background(), nil, query, false)
	require.Error(t, err)
	assert.Equal(t, "No access", query.NotificationText())
	assert.Equal(t, model.NotificationError, query.NotificationKind())
}

func TestGetStream(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.NotEmpty(t, r.FormValue("data"))

		w.Header().Set("Content-Disposition", `attachment; filename="report.xlsx"`)
		w.Write([]byte("xlsx-bytes"))
	})

	name, content, err := s.GetStream(context.Background(), nil, "ExportToExcel", nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "report.xlsx", name)
	assert.Equal(t, []byte("xlsx-bytes"), content)
}

func TestGetReport(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/GetReport/tok-report"))
		assert.Equal(t, "Age gt 21", r.URL.Query().Get("$filter"))
		assert.Equal(t, "10", r.URL.Query().Get("$top"))
		assert.Equal(t, "true", r.URL.Query().Get("hideIds"))
		writeJSON(w, map[string]any{"d": []map[string]any{
			{"FirstName": "Ada"},
			{"FirstName": "Grace"},
		}})
	})

	rows, err := s.GetReport(context.Background(), "tok-report", ReportOptions{
		Filter:  "Age gt 21",
		Top:     10,
		HideIDs: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada", rows[0]["FirstName"])
}
