package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
)

func TestGradeSubmissionRoute(t *testing.T) {
	s := newTestServer(t)
	homework := s.homework(t, "Loops", 1, time.Now().Add(time.Hour))

	resp := s.do(t, http.MethodPost, apiPath("/homeworks/%d/submissions", homework.ID), &s.alice, map[string]interface{}{"content": "answer"})
	require.Equal(t, http.StatusCreated, resp.status)
	submissionID := uint(resp.data(t)["id"].(float64))

	resp = s.do(t, http.MethodPatch, apiPath("/submissions/%d/grade", submissionID), &s.otherTeacher, map[string]interface{}{"score_percent": 90})
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = s.do(t, http.MethodPatch, apiPath("/submissions/%d/grade", submissionID), &s.teacher, map[string]interface{}{"score_percent": 150})
	require.Equal(t, http.StatusBadRequest, resp.status)

	resp = s.do(t, http.MethodPatch, apiPath("/submissions/%d/grade", submissionID), &s.teacher, map[string]interface{}{
		"score_percent": 85,
		"comment":       "Nice work",
	})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	requireContract(t, "submission.schema.json", resp)
	data := resp.data(t)
	require.EqualValues(t, 85, data["score_percent"])
	require.Equal(t, true, data["is_graded"])
	require.Equal(t, "Nice work", data["teacher_comment"])
	require.EqualValues(t, s.teacher.ID, data["graded_by_id"])

	graded, err := s.notifications.Count(context.Background(), s.alice.ID, models.NotificationGraded, homework.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), graded)

	resp = s.do(t, http.MethodPatch, apiPath("/submissions/9999/grade"), &s.teacher, map[string]interface{}{"score_percent": 10})
	require.Equal(t, http.StatusNotFound, resp.status)
}

func TestSubmissionVisibility(t *testing.T) {
	s := newTestServer(t)
	homework := s.homework(t, "Loops", 1, time.Now().Add(time.Hour))

	resp := s.do(t, http.MethodPost, apiPath("/homeworks/%d/submissions", homework.ID), &s.alice, map[string]interface{}{"content": "answer"})
	require.Equal(t, http.StatusCreated, resp.status)
	submissionID := uint(resp.data(t)["id"].(float64))

	resp = s.do(t, http.MethodGet, apiPath("/submissions/%d", submissionID), &s.alice, nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = s.do(t, http.MethodGet, apiPath("/submissions/%d", submissionID), &s.bob, nil)
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = s.do(t, http.MethodGet, apiPath("/submissions/queue"), &s.teacher, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Len(t, resp.data(t)["pending"], 1)

	resp = s.do(t, http.MethodGet, apiPath("/submissions/queue"), &s.alice, nil)
	require.Equal(t, http.StatusForbidden, resp.status)
}
