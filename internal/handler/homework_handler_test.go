package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCreateHomeworkContract(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, apiPath("/homeworks"), &s.teacher, map[string]interface{}{
		"title":       "Models",
		"description": "Define the models",
		"deadline":    time.Now().UTC().Add(48 * time.Hour),
		"group_id":    s.group.ID,
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	requireContract(t, "homework_create.schema.json", resp)

	notifications := resp.data(t)["notifications"].(map[string]interface{})
	require.EqualValues(t, 2, notifications["attempted"])
	require.EqualValues(t, 2, notifications["delivered"])

	resp = s.do(t, http.MethodPost, apiPath("/homeworks"), &s.otherTeacher, map[string]interface{}{
		"title":    "Not mine",
		"deadline": time.Now().UTC().Add(time.Hour),
		"group_id": s.group.ID,
	})
	require.Equal(t, http.StatusForbidden, resp.status)
	requireContract(t, "error.schema.json", resp)

	resp = s.do(t, http.MethodPost, apiPath("/homeworks"), &s.teacher, map[string]interface{}{"group_id": s.group.ID})
	require.Equal(t, http.StatusBadRequest, resp.status)
}

func TestSubmitHomeworkOnce(t *testing.T) {
	s := newTestServer(t)
	homework := s.homework(t, "Loops", 1, time.Now().Add(time.Hour))

	resp := s.do(t, http.MethodPost, apiPath("/homeworks/%d/submissions", homework.ID), &s.alice, map[string]interface{}{
		"content":       "print('hi')",
		"is_code":       true,
		"code_language": "Python",
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	requireContract(t, "submission.schema.json", resp)
	require.Equal(t, "python", resp.data(t)["code_language"])

	resp = s.do(t, http.MethodPost, apiPath("/homeworks/%d/submissions", homework.ID), &s.alice, map[string]interface{}{"content": "again"})
	require.Equal(t, http.StatusConflict, resp.status)
	require.Equal(t, int64(1), s.countSubmissions(t, homework.ID))

	resp = s.do(t, http.MethodPost, apiPath("/homeworks/%d/submissions", homework.ID), &s.outsider, map[string]interface{}{"content": "let me in"})
	require.Equal(t, http.StatusForbidden, resp.status)
}

func TestLateSubmissionIsRejectedWithoutWriting(t *testing.T) {
	s := newTestServer(t)
	homework := s.homework(t, "Late", 1, time.Now().Add(-time.Minute))

	resp := s.do(t, http.MethodPost, apiPath("/homeworks/%d/submissions", homework.ID), &s.alice, map[string]interface{}{"content": "too late"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	requireContract(t, "error.schema.json", resp)
	require.Zero(t, s.countSubmissions(t, homework.ID))
}

func TestHomeworkLockRoute(t *testing.T) {
	s := newTestServer(t)
	first := s.homework(t, "First", 1, time.Now().Add(time.Hour))
	second := s.homework(t, "Second", 2, time.Now().Add(2*time.Hour))

	resp := s.do(t, http.MethodGet, apiPath("/homeworks/%d/lock", second.ID), &s.alice, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, true, resp.data(t)["locked"])

	resp = s.do(t, http.MethodGet, apiPath("/homeworks/%d", second.ID), &s.alice, nil)
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = s.do(t, http.MethodPost, apiPath("/homeworks/%d/submissions", first.ID), &s.alice, map[string]interface{}{"content": "done"})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = s.do(t, http.MethodGet, apiPath("/homeworks/%d/lock", second.ID), &s.alice, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, false, resp.data(t)["locked"])

	// staff ask on behalf of a student
	resp = s.do(t, http.MethodGet, apiPath("/homeworks/%d/lock?student_id=%d", second.ID, s.bob.ID), &s.teacher, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, true, resp.data(t)["locked"])
}

func TestMultipartSubmissionWithoutUploader(t *testing.T) {
	s := newTestServer(t)
	homework := s.homework(t, "Report", 1, time.Now().Add(time.Hour))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("content", "see attachment"))
	part, err := writer.CreateFormFile("file", "report.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text report"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, apiPath("/homeworks/%d/submissions", homework.ID), body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(testUserHeader, strconv.FormatUint(uint64(s.alice.ID), 10))

	resp := s.send(t, req)
	require.Equal(t, http.StatusBadRequest, resp.status, string(resp.body))
	require.Zero(t, s.countSubmissions(t, homework.ID))
}

func TestHomeworkRouteErrors(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, apiPath("/homeworks"), nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.status)

	resp = s.do(t, http.MethodGet, apiPath("/homeworks/abc"), &s.teacher, nil)
	require.Equal(t, http.StatusBadRequest, resp.status)
	requireContract(t, "error.schema.json", resp)

	resp = s.do(t, http.MethodGet, apiPath("/homeworks/9999"), &s.teacher, nil)
	require.Equal(t, http.StatusNotFound, resp.status)

	resp = s.do(t, http.MethodDelete, apiPath("/homeworks/9999"), &s.admin, nil)
	require.Equal(t, http.StatusNotFound, resp.status)
}

func TestHomeworkListShapesPerRole(t *testing.T) {
	s := newTestServer(t)
	s.homework(t, "First", 1, time.Now().Add(time.Hour))

	resp := s.do(t, http.MethodGet, apiPath("/homeworks"), &s.alice, nil)
	require.Equal(t, http.StatusOK, resp.status)
	data := resp.data(t)
	require.Equal(t, "student", data["role"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	require.Contains(t, items[0], "is_locked")

	resp = s.do(t, http.MethodGet, apiPath("/homeworks"), &s.teacher, nil)
	require.Equal(t, http.StatusOK, resp.status)
	items = resp.data(t)["items"].([]interface{})
	require.Len(t, items, 1)
	require.Contains(t, items[0], "pending")
}
